package builtins

import (
	"kugl/internal/table"
)

func podsTable() table.BuiltinDef {
	return table.BuiltinDef{
		Name:     "pods",
		Resource: "pods",
		Columns: []table.CodeColumn{
			{Name: "name", SQLType: "text"},
			{Name: "is_daemon", SQLType: "integer"},
			{Name: "namespace", SQLType: "text"},
			{Name: "node_name", SQLType: "text"},
			{Name: "creation_ts", SQLType: "integer"},
			{Name: "command", SQLType: "text"},
			{Name: "status", SQLType: "text"},
			{Name: "cpu_req", SQLType: "real"},
			{Name: "gpu_req", SQLType: "real"},
			{Name: "mem_req", SQLType: "integer"},
			{Name: "cpu_lim", SQLType: "real"},
			{Name: "gpu_lim", SQLType: "real"},
			{Name: "mem_lim", SQLType: "integer"},
		},
		MakeRows: func(doc any) ([]table.Row, error) {
			var rows []table.Row
			for _, item := range asList(asMap(doc)["items"]) {
				values := []any{
					objName(item),
					podIsDaemon(item),
					objNamespace(item),
					asMap(asMap(item)["spec"])["nodeName"],
					creationEpoch(item),
					podCommand(item),
					asMap(item)["kubectl_status"],
				}
				values = append(values, podResources(item, "requests").values()...)
				values = append(values, podResources(item, "limits").values()...)
				rows = append(rows, table.Row{Obj: item, Values: values})
			}
			return rows, nil
		},
	}
}

func jobsTable() table.BuiltinDef {
	return table.BuiltinDef{
		Name:     "jobs",
		Resource: "jobs",
		Columns: []table.CodeColumn{
			{Name: "name", SQLType: "text"},
			{Name: "namespace", SQLType: "text"},
			{Name: "status", SQLType: "text"},
			{Name: "creation_ts", SQLType: "integer"},
		},
		MakeRows: func(doc any) ([]table.Row, error) {
			var rows []table.Row
			for _, item := range asList(asMap(doc)["items"]) {
				rows = append(rows, table.Row{Obj: item, Values: []any{
					objName(item),
					objNamespace(item),
					jobStatus(item),
					creationEpoch(item),
				}})
			}
			return rows, nil
		},
	}
}

func nodesTable() table.BuiltinDef {
	return table.BuiltinDef{
		Name:     "nodes",
		Resource: "nodes",
		Columns: []table.CodeColumn{
			{Name: "name", SQLType: "text"},
			{Name: "instance_type", SQLType: "text"},
			{Name: "cpu_alloc", SQLType: "real"},
			{Name: "gpu_alloc", SQLType: "real"},
			{Name: "mem_alloc", SQLType: "integer"},
			{Name: "cpu_cap", SQLType: "real"},
			{Name: "gpu_cap", SQLType: "real"},
			{Name: "mem_cap", SQLType: "integer"},
		},
		MakeRows: func(doc any) ([]table.Row, error) {
			var rows []table.Row
			for _, item := range asList(asMap(doc)["items"]) {
				status := asMap(asMap(item)["status"])
				values := []any{objName(item), instanceType(item)}
				values = append(values, extractLimits(status["allocatable"]).values()...)
				values = append(values, extractLimits(status["capacity"]).values()...)
				rows = append(rows, table.Row{Obj: item, Values: values})
			}
			return rows, nil
		},
	}
}

func instanceType(node any) any {
	labels := asMap(metadata(node)["labels"])
	if v, ok := labels["node.kubernetes.io/instance-type"]; ok {
		return v
	}
	return labels["beta.kubernetes.io/instance-type"]
}
