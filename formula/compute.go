package formula

import (
	"math"
	"regexp"
	"sort"
	"strconv"
)

const (
	// targetPerDoseGrams is the advisory target weight of a single dose.
	// When the merged per-dose weight exceeds it, a reduced dose count is
	// recommended (never applied automatically).
	targetPerDoseGrams = 100

	// waterAbsorptionFactor is the empirical allowance for water absorbed
	// by the dry herbs during decoction.
	waterAbsorptionFactor = 1.2

	// waterBaseMl is the fixed brewing base volume.
	waterBaseMl = 300
)

// adjustmentPattern matches one herb adjustment: an optional sign, a Hangul
// herb name and a decimal amount, e.g. "감초4" or "-마황2.5". A missing sign
// means add.
var adjustmentPattern = regexp.MustCompile(`([+-]?)(\p{Hangul}+)(\d+(?:\.\d+)?)`)

// ParseAdjustments scans free-text herb adjustments in order of appearance.
// Malformed text simply yields no matches; there is no error channel.
func ParseAdjustments(text string) []HerbAdjustment {
	var adjustments []HerbAdjustment
	for _, m := range adjustmentPattern.FindAllStringSubmatch(text, -1) {
		amount, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			continue
		}
		adjustments = append(adjustments, HerbAdjustment{
			HerbName: m[2],
			Amount:   amount,
			IsAdd:    m[1] != "-",
		})
	}
	return adjustments
}

// RecommendDoses returns the advisory dose count for an over-target per-dose
// weight, rounded to one decimal place. The second return is false when the
// weight is at or under target and no recommendation applies.
func RecommendDoses(totalPerDoseWeight float64, days int) (float64, bool) {
	if totalPerDoseWeight <= targetPerDoseGrams {
		return 0, false
	}
	recommended := math.Round(float64(days)*targetPerDoseGrams/totalPerDoseWeight*10) / 10
	return recommended, true
}

// HerbIDLookup resolves a herb name to its catalog ID. The second return is
// false for names unknown to the herb catalog.
type HerbIDLookup func(name string) (int, bool)

// ComputeFinal derives the dispensing list and batch quantities from the
// merged per-dose herbs, the dosing parameters and the free-text adjustment
// expression. It is a total function: malformed adjustment text applies no
// adjustments and all arithmetic is defined over the declared input ranges.
func ComputeFinal(merged []MergedHerb, dosing DosingParameters, adjustmentText string, herbID HerbIDLookup) ([]FinalHerb, Quantities) {
	totalPerDose := 0.0
	for _, h := range merged {
		totalPerDose += h.Dosage
	}

	quantities := Quantities{TotalPerDoseWeight: totalPerDose}
	if recommended, ok := RecommendDoses(totalPerDose, dosing.Days); ok {
		quantities.RecommendedDoses = &recommended
	}

	// Whole-batch base amounts, rounded to whole grams.
	amounts := make(map[string]float64, len(merged))
	for _, h := range merged {
		amounts[h.HerbName] = math.Round(h.Dosage * dosing.TotalDoses)
	}

	// Adjustments apply sequentially in parse order. Additions introduce
	// unknown herbs starting from zero; a subtraction that reaches zero or
	// below removes the herb entirely.
	for _, adj := range ParseAdjustments(adjustmentText) {
		if adj.IsAdd {
			amounts[adj.HerbName] += adj.Amount
			continue
		}
		remaining := amounts[adj.HerbName] - adj.Amount
		if remaining <= 0 {
			delete(amounts, adj.HerbName)
		} else {
			amounts[adj.HerbName] = remaining
		}
	}

	finalHerbs := make([]FinalHerb, 0, len(amounts))
	for name, amount := range amounts {
		id := UnknownHerbID
		if herbID != nil {
			if resolved, ok := herbID(name); ok {
				id = resolved
			}
		}
		finalHerbs = append(finalHerbs, FinalHerb{HerbID: id, HerbName: name, Amount: amount})
	}
	sort.Slice(finalHerbs, func(i, j int) bool {
		if finalHerbs[i].HerbID != finalHerbs[j].HerbID {
			return finalHerbs[i].HerbID < finalHerbs[j].HerbID
		}
		return finalHerbs[i].HerbName < finalHerbs[j].HerbName
	})

	batchWeight := 0.0
	for _, h := range finalHerbs {
		batchWeight += h.Amount
	}

	quantities.TotalBatchWeight = batchWeight
	quantities.TotalPacks = dosing.Days * dosing.DosesPerDay
	quantities.WaterVolumeMl = waterVolume(batchWeight, dosing.PackVolumeMl, quantities.TotalPacks)

	return finalHerbs, quantities
}

// waterVolume is the empirical decoction volume: 1.2x the dry herb weight for
// absorption, one pack volume per pack plus one extra for brewing loss, and a
// fixed 300 ml base.
func waterVolume(batchWeight float64, packVolumeMl, totalPacks int) int {
	return int(math.Round(batchWeight*waterAbsorptionFactor + float64(packVolumeMl*(totalPacks+1)) + waterBaseMl))
}
