package data

import (
	"sync"
	"testing"
	"time"

	"github.com/haniwon/clinic-server/formula"
)

func sampleCatalog() ([]formula.HerbRecord, []formula.ResolvedTemplate) {
	herbs := []formula.HerbRecord{
		{ID: 1, Name: "시호", Unit: "g"},
		{ID: 2, Name: "감초", Unit: "g"},
	}
	templates := formula.BuildCatalog([]formula.FormulaDefinition{
		{Name: "소시호탕", Composition: "시호:12/감초:4"},
	})
	return herbs, templates
}

func TestNewCatalogContainerIsEmpty(t *testing.T) {
	c := NewCatalogContainer()

	if got := c.GetHerbs(); len(got) != 0 {
		t.Errorf("Expected empty herbs, got %d", len(got))
	}
	if got := c.GetTemplates(); len(got) != 0 {
		t.Errorf("Expected empty templates, got %d", len(got))
	}
	if !c.GetLastUpdated().IsZero() {
		t.Error("Expected zero last-updated time")
	}
	if _, ok := c.HerbID("시호"); ok {
		t.Error("Expected no herb IDs before first update")
	}
}

func TestUpdateCatalogSwapsSnapshot(t *testing.T) {
	c := NewCatalogContainer()
	herbs, templates := sampleCatalog()

	before := time.Now()
	c.UpdateCatalog(herbs, templates)

	if got := c.GetHerbs(); len(got) != 2 {
		t.Fatalf("Expected 2 herbs, got %d", len(got))
	}
	if got := c.GetTemplates(); len(got) != 1 {
		t.Fatalf("Expected 1 template, got %d", len(got))
	}
	if id, ok := c.HerbID("시호"); !ok || id != 1 {
		t.Errorf("Expected 시호 -> 1, got %d ok=%v", id, ok)
	}
	if _, ok := c.HerbID("없는약재"); ok {
		t.Error("Expected unknown herb to miss")
	}
	if c.GetLastUpdated().Before(before) {
		t.Error("Expected last-updated to advance")
	}
}

func TestBeginUpdateIsExclusive(t *testing.T) {
	c := NewCatalogContainer()

	if !c.BeginUpdate() {
		t.Fatal("Expected first BeginUpdate to succeed")
	}
	if c.BeginUpdate() {
		t.Error("Expected concurrent BeginUpdate to fail")
	}
	if !c.IsUpdating() {
		t.Error("Expected IsUpdating during update")
	}

	c.EndUpdate()
	if c.IsUpdating() {
		t.Error("Expected IsUpdating false after EndUpdate")
	}
	if !c.BeginUpdate() {
		t.Error("Expected BeginUpdate to succeed after EndUpdate")
	}
	c.EndUpdate()
}

func TestConcurrentReadersDuringUpdate(t *testing.T) {
	c := NewCatalogContainer()
	herbs, templates := sampleCatalog()
	c.UpdateCatalog(herbs, templates)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// A reader must always see a complete snapshot.
				if got := c.GetTemplates(); len(got) != 1 {
					t.Errorf("Reader saw partial catalog: %d templates", len(got))
					return
				}
				if _, ok := c.HerbID("감초"); !ok {
					t.Error("Reader lost herb IDs mid-update")
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		c.UpdateCatalog(herbs, templates)
	}
	close(stop)
	wg.Wait()
}
