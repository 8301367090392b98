// Package builtins registers the schemas and tables kugl ships with:
// the kubernetes schema with its code-defined tables and the stdin
// schema. It also owns the kubectl post-processing the engine treats as
// adapter business.
package builtins

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"kugl/internal/config"
	"kugl/internal/registry"
	"kugl/internal/resource"
	"kugl/internal/table"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Register installs the built-in schemas into a registry. Call once at
// startup, before any query resolution.
func Register(reg *registry.Registry) error {
	if err := registerKubernetes(reg); err != nil {
		return err
	}
	return registerStdin(reg)
}

func registerKubernetes(reg *registry.Registry) error {
	schema := reg.AddSchema("kubernetes", config.KindKubernetes)
	for _, name := range []string{"pods", "jobs", "nodes"} {
		if err := schema.AddBuiltinResource(config.ResourceDef{Name: name, Namespaced: namespacedFlag(name)}); err != nil {
			return err
		}
	}
	for _, def := range []table.BuiltinDef{podsTable(), jobsTable(), nodesTable()} {
		if err := schema.AddBuiltinTable(def); err != nil {
			return err
		}
	}
	// Wrap the stock kubernetes factory so pod fetches get the tabular
	// status merged in.
	factories := resource.BuiltinFactories()
	stock := factories[config.KindKubernetes]
	reg.AddResourceKind(config.KindKubernetes, func(def config.ResourceDef, fs afero.Fs) (resource.Resource, error) {
		res, err := stock(def, fs)
		if err != nil {
			return nil, err
		}
		if def.Name == "pods" {
			res.(*resource.Kubernetes).SetPostProcess(mergePodStatus)
		}
		return res, nil
	})
	return nil
}

func namespacedFlag(name string) *bool {
	namespaced := name != "nodes"
	return &namespaced
}

func registerStdin(reg *registry.Registry) error {
	schema := reg.AddSchema("stdin", config.KindFile)
	return schema.AddBuiltinResource(config.ResourceDef{Name: "stdin", File: "stdin"})
}

// mergePodStatus folds the STATUS column of plain "kubectl get pods"
// into each pod item as kubectl_status. Pods with no status row are
// dropped.
func mergePodStatus(ns string, allNamespaces bool, doc any) (any, error) {
	argv := []string{"kubectl", "get", "pods"}
	if allNamespaces {
		argv = append(argv, "--all-namespaces")
	} else {
		argv = append(argv, "-n", ns)
	}
	out, err := resource.RunKubectl(argv)
	if err != nil {
		return nil, err
	}
	statuses := podStatusesFromList(out, ns, allNamespaces)

	root := asMap(doc)
	if root == nil {
		return doc, nil
	}
	items := asList(root["items"])
	root["items"] = lo.Filter(lo.Map(items, func(item any, _ int) any {
		key, _ := objNamespace(item).(string)
		name, _ := objName(item).(string)
		status, ok := statuses[key+"/"+name]
		if !ok {
			return nil
		}
		asMap(item)["kubectl_status"] = status
		return item
	}), func(item any, _ int) bool { return item != nil })
	return doc, nil
}

// podStatusesFromList converts the tabular output of "kubectl get pods"
// to a namespace/name -> status map. kubectl doesn't print the UID, so
// namespace/name is the best available key.
func podStatusesFromList(output, ns string, allNamespaces bool) map[string]string {
	var rows [][]string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			rows = append(rows, whitespaceRe.Split(line, -1))
		}
	}
	if len(rows) < 2 {
		return map[string]string{}
	}
	header, rows := rows[0], rows[1:]
	nameIdx := lo.IndexOf(header, "NAME")
	statusIdx := lo.IndexOf(header, "STATUS")
	nsIdx := lo.IndexOf(header, "NAMESPACE")
	if nameIdx < 0 || statusIdx < 0 {
		return map[string]string{}
	}
	statuses := map[string]string{}
	for _, row := range rows {
		if len(row) <= statusIdx || len(row) <= nameIdx {
			continue
		}
		rowNS := ns
		if allNamespaces && nsIdx >= 0 && len(row) > nsIdx {
			rowNS = row[nsIdx]
		}
		statuses[rowNS+"/"+row[nameIdx]] = row[statusIdx]
	}
	return statuses
}
