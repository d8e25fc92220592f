// Package workers calculates worker pool sizes based on available CPUs.
package workers
