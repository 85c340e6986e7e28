package commands

import (
	"net/url"
	"testing"
)

func TestAddTraitParams(t *testing.T) {
	params := url.Values{}
	addTraitParams(params,
		[]string{"HW_CPU_X86_AVX,HW_CPU_X86_SSE", "STORAGE_DISK_SSD"},
		[]string{"CUSTOM_SLOW"})
	got := params["required"]
	if len(got) != 2 {
		t.Fatalf("required params: %v", got)
	}
	if got[0] != "in:HW_CPU_X86_AVX,HW_CPU_X86_SSE" {
		t.Fatalf("alternative group: %q", got[0])
	}
	if got[1] != "STORAGE_DISK_SSD,!CUSTOM_SLOW" {
		t.Fatalf("collated names: %q", got[1])
	}
}

func TestAddTraitParamsEmpty(t *testing.T) {
	params := url.Values{}
	addTraitParams(params, nil, nil)
	if len(params) != 0 {
		t.Fatalf("params: %v", params)
	}
}

func TestJoinResourceFilters(t *testing.T) {
	got := joinResourceFilters([]string{"VCPU=2", "MEMORY_MB=512"})
	if got != "VCPU:2,MEMORY_MB:512" {
		t.Fatalf("got %q", got)
	}
}

func TestJoinResourcesOrdersByClass(t *testing.T) {
	got := joinResources(map[string]int64{"VCPU": 2, "DISK_GB": 10})
	if got != "DISK_GB=10,VCPU=2" {
		t.Fatalf("got %q", got)
	}
}

func TestLocationPath(t *testing.T) {
	cases := []struct {
		endpoint string
		location string
		want     string
	}{
		{"http://placement.test", "http://placement.test/resource_providers/p1", "/resource_providers/p1"},
		{"http://placement.test/placement", "http://placement.test/placement/resource_providers/p1", "/resource_providers/p1"},
		{"http://placement.test", "/resource_providers/p1", "/resource_providers/p1"},
	}
	for _, tc := range cases {
		if got := locationPath(tc.endpoint, tc.location); got != tc.want {
			t.Fatalf("locationPath(%q, %q): got %q, want %q", tc.endpoint, tc.location, got, tc.want)
		}
	}
}
