package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clumsystudios/rarity-tracker/internal/rarity"
)

func writeStatsFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadStatsDir(t *testing.T) {
	dir := t.TempDir()
	writeStatsFile(t, dir, "shoes.csv",
		"Shoes,Stat,Count,Biome,Biome Roll modifier\n"+
			"Winged,speed,10,Marsh,4\n"+
			"Barefoot,stamina,3,,\n"+
			"Broken,,0,,\n")
	writeStatsFile(t, dir, "hat.csv",
		"Hat,Stat,Count\n"+
			"Thinking Cap,smart,7\n")

	table, err := LoadStatsDir(dir)
	if err != nil {
		t.Fatalf("LoadStatsDir failed: %v", err)
	}

	winged, ok := table[rarity.PointsKey("Shoes", "Winged")]
	if !ok {
		t.Fatal("Winged shoes missing from table")
	}
	if winged.Stat != "speed" || winged.Points != 10 {
		t.Errorf("Unexpected winged boost: %+v", winged)
	}
	if winged.Context != "Marsh" || winged.ContextPoints != 4 {
		t.Errorf("Biome bonus not parsed: %+v", winged)
	}

	barefoot := table[rarity.PointsKey("Shoes", "Barefoot")]
	if barefoot.Context != "" {
		t.Errorf("Row without a biome must not carry a context: %+v", barefoot)
	}

	if _, ok := table[rarity.PointsKey("Shoes", "Broken")]; ok {
		t.Error("Rows with an empty stat must be skipped")
	}

	// Historical spelling normalization.
	cap := table[rarity.PointsKey("Hat", "Thinking Cap")]
	if cap.Stat != "smarts" {
		t.Errorf("Expected smart -> smarts normalization, got %q", cap.Stat)
	}
}

func TestLoadStatsDirIgnoresNonCSV(t *testing.T) {
	dir := t.TempDir()
	writeStatsFile(t, dir, "notes.txt", "not a stats file")
	writeStatsFile(t, dir, "charm.csv", "Charm,Stat,Count\nClover,luck,6\n")

	table, err := LoadStatsDir(dir)
	if err != nil {
		t.Fatalf("LoadStatsDir failed: %v", err)
	}
	if len(table) != 1 {
		t.Errorf("Expected 1 entry, got %d", len(table))
	}
}
