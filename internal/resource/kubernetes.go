package resource

import (
	"encoding/json"
	"fmt"

	"kugl/internal/util"
)

// RunKubectl invokes kubectl; tests substitute a canned runner.
var RunKubectl = util.Run

// AllNamespaces is the namespace label used in cache paths when a query
// spans every namespace.
const AllNamespaces = "__all"

// Kubernetes fetches one resource kind via kubectl. Post-processing of
// the returned document (such as merging tabular pod status) belongs to
// the adapter that registers the resource, not here.
type Kubernetes struct {
	name       string
	namespaced bool
	cacheable  bool
	ns         string
	allNS      bool
	post       func(ns string, allNamespaces bool, doc any) (any, error)
}

func (k *Kubernetes) Name() string    { return k.name }
func (k *Kubernetes) Cacheable() bool { return k.cacheable }

// SetNamespace applies the query's namespace options.
func (k *Kubernetes) SetNamespace(ns string, allNamespaces bool) {
	k.allNS = allNamespaces
	if ns != "" {
		k.ns = ns
	}
}

// SetPostProcess installs an adapter hook run on each fetched document.
func (k *Kubernetes) SetPostProcess(post func(ns string, allNamespaces bool, doc any) (any, error)) {
	k.post = post
}

func (k *Kubernetes) namespaceLabel() string {
	if !k.namespaced {
		return ""
	}
	if k.allNS {
		return AllNamespaces
	}
	return k.ns
}

func (k *Kubernetes) CachePath() (string, error) {
	if label := k.namespaceLabel(); label != "" {
		return fmt.Sprintf("%s.%s.json", label, k.name), nil
	}
	return k.name + ".json", nil
}

func (k *Kubernetes) GetObjects() (any, error) {
	argv := []string{"kubectl", "get", k.name}
	if k.namespaced {
		if k.allNS {
			argv = append(argv, "--all-namespaces")
		} else {
			argv = append(argv, "-n", k.ns)
		}
	}
	argv = append(argv, "-o", "json")
	out, err := RunKubectl(argv)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		return nil, fmt.Errorf("kubectl returned invalid JSON: %w", err)
	}
	if k.post != nil {
		return k.post(k.ns, k.allNS, doc)
	}
	return doc, nil
}
