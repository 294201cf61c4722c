// Package errorreg reads and clears the error registers of FMEs and ports.
package errorreg

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/token"
	"github.com/thinkparq/fpgakit/ctl/pkg/config"
	"github.com/thinkparq/fpgakit/ctl/pkg/ctl/device"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Register is the value of one error register at the time it was read.
type Register struct {
	Resource *device.Resource
	Index    int
	Name     string
	Value    uint64
	CanClear bool
}

type GetErrors_Config struct {
	Selector device.Selector
	// Only return registers with a value other than zero.
	NonZeroOnly bool
	// Only return registers with one of these names. Empty returns all registers.
	Names []string
}

// GetErrors reads the error registers of all selected resources. Resources are read in parallel
// using up to NumWorkersKey workers, the result is ordered by resource then register index.
func GetErrors(ctx context.Context, cfg GetErrors_Config) ([]Register, error) {
	rt, err := config.Runtime()
	if err != nil {
		return nil, err
	}
	tokens, resources, err := device.Resolve(ctx, cfg.Selector)
	if err != nil {
		return nil, err
	}
	defer device.Release(rt, tokens)

	perResource := make([][]Register, len(tokens))
	err = forEach(ctx, len(tokens), func(i int) error {
		regs, err := readRegisters(tokens[i], resources[i], cfg)
		if err != nil {
			return fmt.Errorf("reading error registers of %s: %w", resources[i].SysfsPath, err)
		}
		perResource[i] = regs
		return nil
	})
	if err != nil {
		return nil, err
	}

	registers := []Register{}
	for _, regs := range perResource {
		registers = append(registers, regs...)
	}
	return registers, nil
}

func readRegisters(t *token.Token, r *device.Resource, cfg GetErrors_Config) ([]Register, error) {
	rt, err := config.Runtime()
	if err != nil {
		return nil, err
	}
	registry := rt.Registry()
	num, err := registry.NumErrors(t)
	if err != nil {
		return nil, err
	}

	regs := make([]Register, 0, num)
	for i := 0; i < num; i++ {
		info, err := registry.GetErrorInfo(t, i)
		if err != nil {
			return nil, err
		}
		if !nameSelected(info.Name, cfg.Names) {
			continue
		}
		value, err := registry.ReadError(t, i)
		if err != nil {
			return nil, err
		}
		if cfg.NonZeroOnly && value == 0 {
			continue
		}
		regs = append(regs, Register{
			Resource: r,
			Index:    i,
			Name:     info.Name,
			Value:    value,
			CanClear: info.CanClear,
		})
	}
	return regs, nil
}

func nameSelected(name string, names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

type ClearErrors_Config struct {
	Selector device.Selector
	// Only clear registers with one of these names. Empty clears every clearable register.
	Names []string
}

// ClearResult describes the outcome of clearing the registers of one resource.
type ClearResult struct {
	Resource *device.Resource
	Cleared  []string
	Err      error
}

// ClearErrors clears the error registers of all selected resources. A failure on one resource does
// not stop the others from being cleared, check the Err of each result.
func ClearErrors(ctx context.Context, cfg ClearErrors_Config) ([]ClearResult, error) {
	rt, err := config.Runtime()
	if err != nil {
		return nil, err
	}
	log, _ := config.GetLogger()
	tokens, resources, err := device.Resolve(ctx, cfg.Selector)
	if err != nil {
		return nil, err
	}
	defer device.Release(rt, tokens)

	results := make([]ClearResult, len(tokens))
	err = forEach(ctx, len(tokens), func(i int) error {
		results[i] = clearRegisters(rt.Registry(), tokens[i], resources[i], cfg.Names)
		if results[i].Err != nil {
			log.Debug("unable to clear errors", zap.String("sysfsPath", resources[i].SysfsPath), zap.Error(results[i].Err))
		}
		return nil
	})
	return results, err
}

func clearRegisters(registry *token.Registry, t *token.Token, r *device.Resource, names []string) ClearResult {
	result := ClearResult{Resource: r, Cleared: []string{}}
	num, err := registry.NumErrors(t)
	if err != nil {
		result.Err = err
		return result
	}

	if len(names) == 0 {
		if result.Err = registry.ClearAllErrors(t); result.Err != nil {
			return result
		}
		for i := 0; i < num; i++ {
			if info, err := registry.GetErrorInfo(t, i); err == nil && info.CanClear {
				result.Cleared = append(result.Cleared, info.Name)
			}
		}
		return result
	}

	found := map[string]bool{}
	for i := 0; i < num; i++ {
		info, err := registry.GetErrorInfo(t, i)
		if err != nil {
			result.Err = err
			return result
		}
		if !nameSelected(info.Name, names) {
			continue
		}
		found[info.Name] = true
		if err := registry.ClearError(t, i); err != nil {
			result.Err = fmt.Errorf("clearing %s: %w", info.Name, err)
			return result
		}
		result.Cleared = append(result.Cleared, info.Name)
	}
	for _, n := range names {
		if !found[n] {
			result.Err = fmt.Errorf("%w: no error register named %s", fpga.NotFound, n)
			return result
		}
	}
	return result
}

// forEach calls fn for the indices 0 to n-1 using up to NumWorkersKey workers. The first error
// cancels the remaining work.
func forEach(ctx context.Context, n int, fn func(i int) error) error {
	numWorkers := min(max(viper.GetInt(config.NumWorkersKey), 1), max(n, 1))

	g, gCtx := errgroup.WithContext(ctx)
	indices := make(chan int, numWorkers*4)
	g.Go(func() error {
		defer close(indices)
		for i := 0; i < n; i++ {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case indices <- i:
			}
		}
		return nil
	})
	for w := 0; w < numWorkers; w++ {
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return gCtx.Err()
				case i, ok := <-indices:
					if !ok {
						return nil
					}
					if err := fn(i); err != nil {
						return err
					}
				}
			}
		})
	}
	return g.Wait()
}
