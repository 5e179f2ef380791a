package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/clumsystudios/rarity-tracker/internal/rarity"
)

// LoadStatsDir builds a points table for the weighted scoring mode from a
// directory of CSV files, one file per trait. The first header column names
// the trait; each row maps a trait value to a stat and its points, with an
// optional context column ("Biome") and its roll modifier.
func LoadStatsDir(dir string) (rarity.PointsTable, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading stats directory: %w", err)
	}

	table := make(rarity.PointsTable)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		file, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		err = parseStatsFile(file, table)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", entry.Name(), err)
		}
	}
	return table, nil
}

func parseStatsFile(r io.Reader, table rarity.PointsTable) error {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return err
	}
	if len(header) == 0 {
		return fmt.Errorf("empty header")
	}

	trait := header[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	statIdx, ok := col["Stat"]
	if !ok {
		return fmt.Errorf("missing Stat column")
	}
	countIdx, ok := col["Count"]
	if !ok {
		return fmt.Errorf("missing Count column")
	}
	biomeIdx, hasBiome := col["Biome"]
	modifierIdx, hasModifier := col["Biome Roll modifier"]

	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		stat := row[statIdx]
		if stat == "" {
			continue
		}
		// Historical data uses both spellings.
		if stat == "smart" {
			stat = "smarts"
		}
		points, err := strconv.Atoi(row[countIdx])
		if err != nil {
			return fmt.Errorf("bad point count %q for value %q: %w", row[countIdx], row[0], err)
		}

		boost := rarity.StatBoost{Stat: stat, Points: points}
		if hasBiome && hasModifier && row[biomeIdx] != "" {
			modifier, err := strconv.Atoi(row[modifierIdx])
			if err != nil {
				return fmt.Errorf("bad biome modifier %q for value %q: %w", row[modifierIdx], row[0], err)
			}
			boost.Context = row[biomeIdx]
			boost.ContextPoints = modifier
		}
		table[rarity.PointsKey(trait, row[0])] = boost
	}
}
