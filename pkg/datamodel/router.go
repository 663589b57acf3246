package datamodel

import (
	"context"
	"sort"
	"sync"
)

// Router routes interaction requests to clusters: EndpointID → ClusterID →
// Cluster. Safe for concurrent use.
type Router struct {
	mu        sync.RWMutex
	endpoints map[EndpointID]map[ClusterID]Cluster
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		endpoints: make(map[EndpointID]map[ClusterID]Cluster),
	}
}

// RegisterCluster registers cluster on its endpoint.
func (r *Router) RegisterCluster(cluster Cluster) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ep := cluster.EndpointID()
	if r.endpoints[ep] == nil {
		r.endpoints[ep] = make(map[ClusterID]Cluster)
	}
	if _, ok := r.endpoints[ep][cluster.ID()]; ok {
		return ErrClusterExists
	}
	r.endpoints[ep][cluster.ID()] = cluster
	return nil
}

// UnregisterCluster removes a cluster from an endpoint.
func (r *Router) UnregisterCluster(endpointID EndpointID, clusterID ClusterID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.endpoints[endpointID] != nil {
		delete(r.endpoints[endpointID], clusterID)
		if len(r.endpoints[endpointID]) == 0 {
			delete(r.endpoints, endpointID)
		}
	}
}

// GetCluster looks up a cluster by endpoint and cluster ID.
func (r *Router) GetCluster(endpointID EndpointID, clusterID ClusterID) (Cluster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clusters, ok := r.endpoints[endpointID]
	if !ok {
		return nil, ErrEndpointNotFound
	}
	cluster, ok := clusters[clusterID]
	if !ok {
		return nil, ErrClusterNotFound
	}
	return cluster, nil
}

// Paths returns every registered cluster path, sorted.
func (r *Router) Paths() []ConcreteClusterPath {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ConcreteClusterPath
	for ep, clusters := range r.endpoints {
		for id := range clusters {
			out = append(out, ConcreteClusterPath{Endpoint: ep, Cluster: id})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Endpoint != out[j].Endpoint {
			return out[i].Endpoint < out[j].Endpoint
		}
		return out[i].Cluster < out[j].Cluster
	})
	return out
}

// ReadAttribute reads an attribute from the appropriate cluster.
func (r *Router) ReadAttribute(ctx context.Context, path ConcreteAttributePath) (any, error) {
	cluster, err := r.GetCluster(path.Endpoint, path.Cluster)
	if err != nil {
		return nil, err
	}
	return cluster.ReadAttribute(ctx, path.Attribute)
}

// InvokeCommand invokes a command on the appropriate cluster.
func (r *Router) InvokeCommand(ctx context.Context, path ConcreteCommandPath, fields []byte) (any, error) {
	cluster, err := r.GetCluster(path.Endpoint, path.Cluster)
	if err != nil {
		return nil, err
	}
	return cluster.InvokeCommand(ctx, path.Command, fields)
}
