package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"armory/internal/progression"
)

//go:embed catalog.json
var defaultDocument []byte

var codeRE = regexp.MustCompile(`^[a-z0-9_]{3,48}$`)

type Faction struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Item struct {
	Code         string            `json:"code"`
	Name         string            `json:"name"`
	Faction      string            `json:"faction"`
	Branch       string            `json:"branch"`
	Class        string            `json:"class"`
	Level        int               `json:"level"`
	PurchaseCost int64             `json:"purchase_cost"`
	Stats        progression.Stats `json:"stats"`
	Visible      bool              `json:"visible"`
}

// Edge references items by code; ids are assigned when the catalog is stored.
type Edge struct {
	Predecessor string `json:"predecessor"`
	Successor   string `json:"successor"`
	RequiredXP  int64  `json:"required_xp"`
}

type Catalog struct {
	Factions []Faction `json:"factions"`
	Items    []Item    `json:"items"`
	Edges    []Edge    `json:"edges"`
}

// Default returns the embedded seed catalog.
func Default() (Catalog, error) {
	return Load(bytes.NewReader(defaultDocument))
}

func LoadFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func Load(r io.Reader) (Catalog, error) {
	var c Catalog
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

func (c Catalog) Validate() error {
	var errs []error
	factions := make(map[string]bool, len(c.Factions))
	for _, f := range c.Factions {
		if !codeRE.MatchString(f.Code) {
			errs = append(errs, fmt.Errorf("faction code %q is invalid", f.Code))
		}
		if factions[f.Code] {
			errs = append(errs, fmt.Errorf("duplicate faction %q", f.Code))
		}
		factions[f.Code] = true
	}

	items := make(map[string]Item, len(c.Items))
	for _, it := range c.Items {
		if !codeRE.MatchString(it.Code) {
			errs = append(errs, fmt.Errorf("item code %q is invalid", it.Code))
		}
		if _, dup := items[strings.ToLower(it.Code)]; dup {
			errs = append(errs, fmt.Errorf("duplicate item %q", it.Code))
		}
		items[strings.ToLower(it.Code)] = it
		if strings.TrimSpace(it.Name) == "" {
			errs = append(errs, fmt.Errorf("item %q has no name", it.Code))
		}
		if !factions[it.Faction] {
			errs = append(errs, fmt.Errorf("item %q references unknown faction %q", it.Code, it.Faction))
		}
		if it.Level < 1 {
			errs = append(errs, fmt.Errorf("item %q level must be >= 1", it.Code))
		}
		if it.PurchaseCost < 0 {
			errs = append(errs, fmt.Errorf("item %q cost must be >= 0", it.Code))
		}
	}

	seen := make(map[[2]string]bool, len(c.Edges))
	for _, e := range c.Edges {
		pred, succ := strings.ToLower(e.Predecessor), strings.ToLower(e.Successor)
		if _, ok := items[pred]; !ok {
			errs = append(errs, fmt.Errorf("edge %s -> %s: unknown predecessor", e.Predecessor, e.Successor))
		}
		if _, ok := items[succ]; !ok {
			errs = append(errs, fmt.Errorf("edge %s -> %s: unknown successor", e.Predecessor, e.Successor))
		}
		if pred == succ {
			errs = append(errs, fmt.Errorf("edge %s -> %s: self loop", e.Predecessor, e.Successor))
		}
		if e.RequiredXP < 0 {
			errs = append(errs, fmt.Errorf("edge %s -> %s: required xp must be >= 0", e.Predecessor, e.Successor))
		}
		key := [2]string{pred, succ}
		if seen[key] {
			errs = append(errs, fmt.Errorf("duplicate edge %s -> %s", e.Predecessor, e.Successor))
		}
		seen[key] = true
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if cycle := c.findCycle(); cycle != "" {
		return fmt.Errorf("research graph has a cycle through %s", cycle)
	}
	return nil
}

// findCycle runs Kahn's algorithm over the research graph and returns one
// item code left unsorted, or "" when the graph is acyclic.
func (c Catalog) findCycle() string {
	indegree := make(map[string]int, len(c.Items))
	next := make(map[string][]string, len(c.Items))
	for _, it := range c.Items {
		indegree[strings.ToLower(it.Code)] = 0
	}
	for _, e := range c.Edges {
		pred, succ := strings.ToLower(e.Predecessor), strings.ToLower(e.Successor)
		next[pred] = append(next[pred], succ)
		indegree[succ]++
	}
	queue := make([]string, 0, len(indegree))
	for _, it := range c.Items {
		code := strings.ToLower(it.Code)
		if indegree[code] == 0 {
			queue = append(queue, code)
		}
	}
	visited := 0
	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]
		visited++
		for _, succ := range next[code] {
			indegree[succ]--
			if indegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}
	if visited == len(indegree) {
		return ""
	}
	for _, it := range c.Items {
		if code := strings.ToLower(it.Code); indegree[code] > 0 {
			return it.Code
		}
	}
	return ""
}
