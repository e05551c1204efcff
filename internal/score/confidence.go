package score

import "github.com/ppiankov/labelsort/internal/model"

// ConfidenceFunc combines the mode frequency and the mean score of the mode
// members of a cluster into one confidence value.
type ConfidenceFunc func(frequency, avgScore float64, matched, size int) float64

// Product is frequency * avg_score.
func Product(frequency, avgScore float64, _, _ int) float64 {
	return frequency * avgScore
}

// Harmonic is the harmonic mean of frequency and avg_score.
func Harmonic(frequency, avgScore float64, _, _ int) float64 {
	if frequency+avgScore == 0 {
		return 0
	}
	return 2 * frequency * avgScore / (frequency + avgScore)
}

// SizeWeighted scales the product by the matched share of the cluster.
func SizeWeighted(frequency, avgScore float64, matched, size int) float64 {
	if size == 0 {
		return 0
	}
	return frequency * avgScore * float64(matched) / float64(size)
}

var formulas = map[string]string{
	model.ConfidenceProduct:      "frequency * avg_score",
	model.ConfidenceHarmonic:     "2 * frequency * avg_score / (frequency + avg_score)",
	model.ConfidenceSizeWeighted: "frequency * avg_score * matched / size",
}

// ConfidenceByName resolves a configured confidence function.
func ConfidenceByName(name string) (ConfidenceFunc, error) {
	switch name {
	case model.ConfidenceProduct, "":
		return Product, nil
	case model.ConfidenceHarmonic:
		return Harmonic, nil
	case model.ConfidenceSizeWeighted:
		return SizeWeighted, nil
	default:
		return nil, model.ConfigErrorf("unknown confidence function %q (supported: product, harmonic, size_weighted)", name)
	}
}
