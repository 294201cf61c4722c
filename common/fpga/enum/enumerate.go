package enum

import (
	"fmt"
	"path"
	"reflect"

	"github.com/thinkparq/fpgakit/common/fpga"
	"github.com/thinkparq/fpgakit/common/fpga/sysfs"
	"github.com/thinkparq/fpgakit/common/fpga/token"
	"go.uber.org/zap"
)

// Enumerator runs a scan, registers everything it finds and hands out clones of the registry
// entries that match the filters.
type Enumerator struct {
	scanner  *sysfs.Scanner
	registry *token.Registry
	matcher  *Matcher
	log      *zap.Logger
}

func NewEnumerator(scanner *sysfs.Scanner, registry *token.Registry, log *zap.Logger) *Enumerator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Enumerator{
		scanner:  scanner,
		registry: registry,
		matcher:  NewMatcher(scanner.FS(), scanner.Profile()),
		log:      log.With(zap.String("component", path.Base(reflect.TypeOf(Enumerator{}).PkgPath()))),
	}
}

func (e *Enumerator) Matcher() *Matcher {
	return e.matcher
}

// Enumerate scans the system and returns clones of the tokens of up to maxTokens matching
// resources, together with the total number of matches. A maxTokens of zero only counts. The
// returned tokens belong to the caller and should be released with Registry.Destroy.
//
// Every discovered resource is registered, including the ones that do not match, so parents of
// matching ports can always be resolved. NotFound is returned if the scan found no resources at
// all, a scan where nothing matches the filters is not an error.
func (e *Enumerator) Enumerate(filters []*fpga.Properties, maxTokens int) ([]*token.Token, int, error) {
	if maxTokens < 0 {
		return nil, 0, fmt.Errorf("%w: negative maximum number of tokens", fpga.InvalidParam)
	}
	for i, f := range filters {
		if f == nil {
			return nil, 0, fmt.Errorf("%w: filter %d is nil", fpga.InvalidParam, i)
		}
	}

	records, err := e.scanner.Scan(IncludeAccelerators(filters))
	if err != nil {
		return nil, 0, err
	}
	if len(records) == 0 {
		return nil, 0, fmt.Errorf("%w: no FPGA resources found", fpga.NotFound)
	}

	tokens := make([]*token.Token, 0, min(maxTokens, len(records)))
	numMatches := 0
	for _, rec := range records {
		entry, err := e.registry.Add(rec)
		if err != nil {
			e.releaseAll(tokens)
			return nil, 0, fmt.Errorf("registering %s: %w", rec.SysfsPath, err)
		}
		if !e.matcher.MatchesAny(rec, filters) {
			continue
		}
		if len(tokens) < maxTokens {
			clone, err := e.registry.Clone(entry)
			if err != nil {
				e.log.Warn("unable to clone token", zap.Stringer("token", entry), zap.Error(err))
			} else {
				tokens = append(tokens, clone)
			}
		}
		numMatches++
	}
	e.log.Debug("enumerated resources", zap.Int("scanned", len(records)), zap.Int("matches", numMatches), zap.Int("returned", len(tokens)))
	return tokens, numMatches, nil
}

func (e *Enumerator) releaseAll(tokens []*token.Token) {
	for _, t := range tokens {
		if err := e.registry.Destroy(t); err != nil {
			e.log.Debug("unable to destroy token", zap.Error(err))
		}
	}
}
