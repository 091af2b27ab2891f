package provider

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/counter"
)

const nvidiaSMI = "nvidia-smi"

var nvidiaSMIArgs = []string{"--query-gpu=utilization.gpu", "--format=csv,noheader,nounits"}

// GPUUtilization queries nvidia-smi. With several GPUs the busiest one is reported.
func (p *SystemProvider) GPUUtilization(ctx context.Context) (float64, error) {
	if !p.runner.Exists(nvidiaSMI) {
		return 0, ErrGPUUnavailable
	}
	out, err := p.runner.Output(ctx, nvidiaSMI, nvidiaSMIArgs...)
	if err != nil {
		return 0, errors.NewSourceError("gpu", err)
	}
	return parseNvidiaSMI(out)
}

func parseNvidiaSMI(out []byte) (float64, error) {
	var (
		best  float64
		found bool
	)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(line, "%"), 64)
		if err != nil {
			// "[N/A]" on GPUs without utilization sensors
			continue
		}
		if !found || v > best {
			best, found = v, true
		}
	}
	if !found {
		return 0, errors.NewSourceError("gpu", errors.NewError("no utilization in nvidia-smi output %q", strings.TrimSpace(string(out))))
	}
	return counter.Clamp(best, 0, 100), nil
}
