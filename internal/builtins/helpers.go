package builtins

import (
	"strings"

	"kugl/internal/util"
)

// Shared accessors for Kubernetes object maps.

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func metadata(obj any) map[string]any { return asMap(asMap(obj)["metadata"]) }

func objName(obj any) any {
	if name, ok := metadata(obj)["name"]; ok {
		return name
	}
	return asMap(obj)["name"]
}

func objNamespace(obj any) any { return metadata(obj)["namespace"] }

// limits is a cpu/gpu/memory triple extracted from a resources block.
type limits struct {
	cpu float64
	gpu float64
	mem int64
}

func (l limits) add(other limits) limits {
	return limits{cpu: l.cpu + other.cpu, gpu: l.gpu + other.gpu, mem: l.mem + other.mem}
}

func (l limits) values() []any { return []any{l.cpu, l.gpu, l.mem} }

func extractLimits(block any) limits {
	m := asMap(block)
	if m == nil {
		return limits{}
	}
	var result limits
	if cpu, ok := m["cpu"].(string); ok {
		result.cpu, _ = util.ParseCPU(cpu)
	}
	if gpu, ok := m["nvidia.com/gpu"].(string); ok {
		result.gpu, _ = util.ParseCPU(gpu)
	}
	if mem, ok := m["memory"].(string); ok {
		result.mem, _ = util.ParseSize(mem)
	}
	return result
}

// podResources sums one of requests/limits across a pod's containers.
func podResources(pod any, key string) limits {
	var total limits
	for _, container := range asList(asMap(asMap(pod)["spec"])["containers"]) {
		block := asMap(asMap(asMap(container)["resources"])[key])
		total = total.add(extractLimits(block))
	}
	return total
}

func podIsDaemon(pod any) int64 {
	for _, ref := range asList(metadata(pod)["ownerReferences"]) {
		if asMap(ref)["kind"] == "DaemonSet" {
			return 1
		}
	}
	return 0
}

// podCommand joins the first container's command line.
func podCommand(pod any) any {
	containers := asList(asMap(asMap(pod)["spec"])["containers"])
	if len(containers) == 0 {
		return nil
	}
	var parts []string
	for _, word := range asList(asMap(containers[0])["command"]) {
		if s, ok := word.(string); ok {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return strings.Join(parts, " ")
}

func creationEpoch(obj any) any {
	ts, ok := metadata(obj)["creationTimestamp"].(string)
	if !ok {
		return nil
	}
	epoch, err := util.ParseUTC(ts)
	if err != nil {
		return nil
	}
	return epoch
}

// jobStatus derives a single status word from a job's conditions.
func jobStatus(job any) any {
	status := asMap(asMap(job)["status"])
	if status == nil {
		return nil
	}
	for _, cond := range asList(status["conditions"]) {
		c := asMap(cond)
		if c["status"] != "True" {
			continue
		}
		switch c["type"] {
		case "Complete":
			return "Complete"
		case "Failed":
			return "Failed"
		case "Suspended":
			return "Suspended"
		}
	}
	if active, ok := status["active"].(float64); ok && active > 0 {
		return "Running"
	}
	return "Pending"
}
