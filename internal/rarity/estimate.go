package rarity

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/optimize"
)

const lovelacePerADA = 1_000_000

// ValueModel maps a rarity score to an estimated market value in ADA.
type ValueModel interface {
	Predict(rarity float64) float64
}

// SalePoint is one (rarity, realized price) observation used for fitting.
type SalePoint struct {
	Rarity float64 `json:"rarity"`
	Price  float64 `json:"price"`
}

// SaleReducer collapses an asset's observed sale amounts (lovelace) into one
// representative price in ADA.
type SaleReducer func(sales []int64) float64

// MaxSale takes the peak observed sale: it best reflects willingness-to-pay
// for the asset's rarity tier, undiluted by early or distressed sales.
func MaxSale(sales []int64) float64 {
	var max int64
	for _, s := range sales {
		if s > max {
			max = s
		}
	}
	return float64(max) / lovelacePerADA
}

// MeanSale averages the observed sales.
func MeanSale(sales []int64) float64 {
	if len(sales) == 0 {
		return 0
	}
	var sum int64
	for _, s := range sales {
		sum += s
	}
	return float64(sum) / float64(len(sales)) / lovelacePerADA
}

// SalePoints collects one observation per sold asset. Assets without sales
// contribute nothing; they are exactly the ones the fitted model will price.
func SalePoints(assets []*Asset, reduce SaleReducer) []SalePoint {
	var points []SalePoint
	for _, asset := range assets {
		if len(asset.Sales) == 0 {
			continue
		}
		points = append(points, SalePoint{Rarity: asset.Rarity, Price: reduce(asset.Sales)})
	}
	return points
}

// SigmoidModel is the fitted 4-parameter logistic curve
// price = L * sigmoid(K*(rarity-X0)) + B. L and K are non-negative, so the
// curve never models rarer as worth less.
type SigmoidModel struct {
	L  float64 `json:"l"`
	X0 float64 `json:"x0"`
	K  float64 `json:"k"`
	B  float64 `json:"b"`
}

func (m SigmoidModel) Predict(rarity float64) float64 {
	return m.L*expit(m.K*(rarity-m.X0)) + m.B
}

func expit(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// FitSigmoid least-squares fits the logistic curve to the observations.
// The scale and steepness parameters are squared inside the residual, which
// keeps the fitted curve non-decreasing in rarity regardless of where the
// optimizer lands. Fewer than two distinct-rarity observations leave a
// 4-parameter fit underdetermined and return ErrInsufficientData.
func FitSigmoid(points []SalePoint) (SigmoidModel, error) {
	if countDistinctRarities(points) < 2 {
		return SigmoidModel{}, ErrInsufficientData
	}

	minY, maxY := points[0].Price, points[0].Price
	for _, p := range points {
		minY = math.Min(minY, p.Price)
		maxY = math.Max(maxY, p.Price)
	}

	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			m := sigmoidFromParams(params)
			var sse float64
			for _, p := range points {
				d := m.Predict(p.Rarity) - p.Price
				sse += d * d
			}
			return sse
		},
	}

	// Same starting point the curve fit has always used: full observed price
	// range for the scale, median rarity for the midpoint.
	initial := []float64{math.Sqrt(maxY - minY + 1), medianRarity(points), 1, minY}
	result, err := optimize.Minimize(problem, initial, nil, &optimize.NelderMead{})
	if err != nil {
		return SigmoidModel{}, fmt.Errorf("sigmoid fit did not converge: %w", err)
	}
	return sigmoidFromParams(result.X), nil
}

func sigmoidFromParams(p []float64) SigmoidModel {
	return SigmoidModel{L: p[0] * p[0], X0: p[1], K: p[2] * p[2], B: p[3]}
}

func countDistinctRarities(points []SalePoint) int {
	seen := make(map[float64]struct{}, len(points))
	for _, p := range points {
		seen[p.Rarity] = struct{}{}
	}
	return len(seen)
}

func medianRarity(points []SalePoint) float64 {
	rarities := make([]float64, len(points))
	for i, p := range points {
		rarities[i] = p.Rarity
	}
	sort.Float64s(rarities)
	mid := len(rarities) / 2
	if len(rarities)%2 == 0 {
		return (rarities[mid-1] + rarities[mid]) / 2
	}
	return rarities[mid]
}

// LinearModel prices assets at a flat per-rarity-point rate, for corpora
// where sale dispersion is too thin for a curve fit.
type LinearModel struct {
	UnitValue float64 `json:"unit_value"`
}

func (m LinearModel) Predict(rarity float64) float64 {
	return m.UnitValue * rarity
}

// FitLinear derives the single rarity->price ratio from aggregate sales.
// With no sold assets the ratio is undefined: ErrInsufficientData.
func FitLinear(points []SalePoint) (LinearModel, error) {
	if len(points) == 0 {
		return LinearModel{}, ErrInsufficientData
	}
	var sumPrice, sumRarity float64
	for _, p := range points {
		sumPrice += p.Price
		sumRarity += p.Rarity
	}
	if sumRarity == 0 {
		return LinearModel{}, ErrInsufficientData
	}
	return LinearModel{UnitValue: sumPrice / sumRarity}, nil
}

// ApplyEstimates prices every asset from the model and derives its profit
// against the current listing. Unlisted assets get the -Inf profit sentinel.
func ApplyEstimates(assets []*Asset, model ValueModel) {
	for _, asset := range assets {
		asset.Value = model.Predict(asset.Rarity)
		if asset.Price == nil {
			asset.Profit = math.Inf(-1)
			continue
		}
		asset.Profit = asset.Value - *asset.Price
	}
}
