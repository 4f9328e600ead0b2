// Package symbols maintains the list of trading pairs to scan.
package symbols

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"PairScanner/internal/atomicfile"
	"PairScanner/internal/exchange"
)

// ErrNoSymbols is returned when neither a static list nor a discovered
// file is available.
var ErrNoSymbols = errors.New("no symbols available")

// Registry stores the discovered symbol list as a JSON array at Path.
// Static, when non-empty, overrides discovery. QuoteAsset, when set, keeps
// only symbols ending with it (e.g. "USDT").
type Registry struct {
	Path       string
	Static     []string
	QuoteAsset string
}

// Discover asks the exchange for active perpetual symbols and persists the
// filtered, sorted list.
func (r *Registry) Discover(ctx context.Context, lister exchange.SymbolLister) ([]string, error) {
	all, err := lister.ListActiveSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	list := r.filter(all)
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := atomicfile.WriteFile(r.Path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write symbols: %w", err)
	}
	return list, nil
}

// Load returns the static list, or the persisted discovery result.
func (r *Registry) Load() ([]string, error) {
	if len(r.Static) > 0 {
		return r.filter(r.Static), nil
	}
	data, err := os.ReadFile(r.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSymbols
		}
		return nil, err
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode symbols %s: %w", r.Path, err)
	}
	list = r.filter(list)
	if len(list) == 0 {
		return nil, ErrNoSymbols
	}
	return list, nil
}

func (r *Registry) filter(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		if r.QuoteAsset != "" && !strings.HasSuffix(s, strings.ToUpper(r.QuoteAsset)) {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
