package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var errEmptyCatalog = errors.New("no items given: pass name=price arguments or --file")

// catalogFile is the YAML layout accepted by "start --file":
//
//	items:
//	  car: 100
//	  phone: 10
type catalogFile struct {
	Items map[string]float64 `yaml:"items"`
}

// buildCatalog merges the catalog file (if any) with name=price arguments.
// Arguments win over file entries with the same name.
func buildCatalog(path string, args []string) (map[string]float64, error) {
	prices := make(map[string]float64)

	if path != "" {
		fromFile, err := loadCatalog(path)
		if err != nil {
			return nil, err
		}
		for name, price := range fromFile {
			prices[name] = price
		}
	}

	for _, arg := range args {
		name, price, err := parseItemArg(arg)
		if err != nil {
			return nil, err
		}
		prices[name] = price
	}

	if len(prices) == 0 {
		return nil, errEmptyCatalog
	}
	return prices, nil
}

func loadCatalog(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var catalog catalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if len(catalog.Items) == 0 {
		return nil, fmt.Errorf("catalog %s has no items", path)
	}
	return catalog.Items, nil
}

func parseItemArg(arg string) (string, float64, error) {
	name, raw, found := strings.Cut(arg, "=")
	name = strings.TrimSpace(name)
	if !found || name == "" {
		return "", 0, fmt.Errorf("item %q must look like name=price", arg)
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", 0, fmt.Errorf("price of %q is not a number", name)
	}
	return name, price, nil
}
