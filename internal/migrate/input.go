package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"migrator/internal/pubkey"
)

// LoadItemList reads a JSON array of base58 mint addresses. Any malformed or
// repeated entry rejects the whole list.
func LoadItemList(r io.Reader) ([]pubkey.Key, error) {
	var raw []string
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse item list: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.New("parse item list: trailing data after array")
	}

	items := make([]pubkey.Key, 0, len(raw))
	seen := make(map[pubkey.Key]int, len(raw))
	for i, s := range raw {
		k, err := pubkey.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("item list entry %d: %w", i, err)
		}
		if prev, ok := seen[k]; ok {
			return nil, fmt.Errorf("item list entry %d: %w: %s (first seen at entry %d)", i, ErrDuplicateItem, k, prev)
		}
		seen[k] = i
		items = append(items, k)
	}
	return items, nil
}

// LoadItemListFile opens path and loads it with LoadItemList.
func LoadItemListFile(path string) ([]pubkey.Key, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open item list: %w", err)
	}
	defer f.Close()

	items, err := LoadItemList(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}
