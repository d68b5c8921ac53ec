// Package cpuspec inspects the host CPU to size the decode worker pool.
package cpuspec

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec contains information about CPU specifications
type CPUSpec struct {
	BrandName        string
	PerformanceCores int
}

// GetCPUSpec returns CPU specifications including the number of performance cores
func GetCPUSpec() CPUSpec {
	brandName := cpuid.CPU.BrandName

	return CPUSpec{
		BrandName:        brandName,
		PerformanceCores: determinePerformanceCores(brandName),
	}
}

// GetOptimalThreadCount returns the recommended worker count for batch
// decoding. On hybrid architectures only performance cores are counted,
// capped by the CPUs actually available to the process.
func (c CPUSpec) GetOptimalThreadCount() int {
	availableCPUs := runtime.NumCPU()

	if c.PerformanceCores > 0 {
		if c.PerformanceCores > availableCPUs {
			return availableCPUs
		}
		return c.PerformanceCores
	}

	// Unknown topology, use all logical cores
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return availableCPUs
}

// P-core counts for Intel hybrid desktop models, keyed by model number.
var intelPerformanceCores = map[string]int{
	"12900": 8, "12700": 8, "12600": 6, "12400": 6, "12100": 4,
	"13900": 8, "13700": 8, "13600": 6, "13500": 6, "13400": 6, "13100": 4,
	"14900": 8, "14700": 8, "14600": 6, "14400": 6, "14100": 4,
}

// P-core counts for Core Ultra models, keyed by series and model number.
var intelUltraPerformanceCores = map[string]int{
	"9/285": 8,
	"7/265": 8, "7/255": 8,
	"5/235": 6, "5/225": 4,
}

// Performance core counts for Apple Silicon chips.
var applePerformanceCores = map[string]int{
	"m1": 4, "m1 pro": 8, "m1 max": 8, "m1 ultra": 16,
	"m2": 4, "m2 pro": 8, "m2 max": 12, "m2 ultra": 24,
	"m3": 4, "m3 pro": 8, "m3 max": 12, "m3 ultra": 24,
	"m4": 6, "m4 pro": 8, "m4 max": 12,
}

var (
	intelCoreRegex = regexp.MustCompile(`intel.*(?:core.*i[357,9]-(\d{5})|core.*ultra\s+([579])\s+(?:processor\s+)?(\d{3}))`)
	appleRegex     = regexp.MustCompile(`(?i)apple\s+(m[123,4]\s*(pro|max|ultra)?)\s*`)
)

func determinePerformanceCores(brandName string) int {
	brandName = strings.ToLower(brandName)

	if matches := intelCoreRegex.FindStringSubmatch(brandName); len(matches) > 1 {
		if matches[1] != "" {
			// Legacy Core i series
			if cores, ok := intelPerformanceCores[matches[1]]; ok {
				return cores
			}
		} else if matches[2] != "" {
			// Core Ultra series
			if cores, ok := intelUltraPerformanceCores[matches[2]+"/"+matches[3]]; ok {
				return cores
			}
		}
	}

	if matches := appleRegex.FindStringSubmatch(brandName); len(matches) > 1 {
		chip := strings.ToLower(strings.TrimSpace(matches[1]))
		if cores, ok := applePerformanceCores[chip]; ok {
			return cores
		}
	}

	// Unknown brand, caller falls back to logical cores
	return 0
}
