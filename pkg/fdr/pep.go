package fdr

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/grailbio/base/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/psm"
)

// ErrInsufficientTraining is returned when a model cannot be trained on the matches.
var ErrInsufficientTraining = errors.New("insufficient training data")

// PEPModel estimates posterior error probabilities. train marks the examples the model may
// learn from and decoy their labels; a probability is returned for every row.
type PEPModel interface {
	Estimate(features [][]float64, decoy, train []bool) ([]float64, error)
}

// FeatureNames labels the columns returned by Features.
var FeatureNames = []string{
	"score", "deltaScore", "absPpmError", "ionsPerResidue", "intensityFraction",
	"missedCleavages", "mods", "hypotheses",
}

// Features returns the PEP predictors of a match.
func Features(m *psm.SpectralMatch) []float64 {
	best := m.Best()
	ppm := 0.0
	if e := m.PrecursorMassError(); !math.IsNaN(e) && m.PrecursorMass > 0 {
		ppm = math.Abs(e) / m.PrecursorMass * 1e6
	}
	var ionsPerResidue, missed, mods float64
	if c := best.Candidate; c != nil {
		if n := len(c.BaseSequence()); n > 0 {
			ionsPerResidue = float64(len(best.Ions)) / float64(n)
		}
		missed = float64(c.MissedCleavages())
		mods = float64(c.NumMods())
	}
	intensity := 0.0
	if m.TotalIonCurrent > 0 {
		for _, ion := range best.Ions {
			intensity += ion.Intensity
		}
		intensity /= m.TotalIonCurrent
	}
	return []float64{
		m.Score, m.DeltaScore(), ppm, ionsPerResidue, intensity,
		missed, mods, float64(len(m.Hypotheses())),
	}
}

func (e *Engine) pep(res *Result) error {
	cutoff := e.QValueCutoffForPEPTraining
	if cutoff <= 0 {
		cutoff = DefaultQValueCutoffForPEPTraining
	}
	ms := res.Matches
	features := make([][]float64, len(ms))
	decoy := make([]bool, len(ms))
	train := make([]bool, len(ms))
	for i, m := range ms {
		features[i] = Features(m)
		decoy[i] = m.IsDecoy()
		train[i] = decoy[i] || m.Fdr.QValue <= cutoff
		if e.ExcludeContaminantOnly && m.ContaminantOnly() {
			train[i] = false
		}
	}
	model := e.Model
	if model == nil {
		model = &LogisticModel{}
	}
	peps, err := model.Estimate(features, decoy, train)
	if err != nil {
		return err
	}
	for i, m := range ms {
		m.Fdr.PEP = peps[i]
	}

	// PEP q-value: the mean PEP of all matches at least as confident.
	order := make([]int, len(ms))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return peps[order[a]] < peps[order[b]] })
	sum := 0.0
	for k, i := range order {
		sum += peps[i]
		ms[i].Fdr.PEPQValue = sum / float64(k+1)
	}
	for k := len(order) - 2; k >= 0; k-- {
		i, next := order[k], order[k+1]
		ms[i].Fdr.PEPQValue = math.Min(ms[i].Fdr.PEPQValue, ms[next].Fdr.PEPQValue)
	}
	return nil
}

// LogisticModel is an L2-regularized logistic regression on standardized features,
// evaluated by k-fold cross fitting: each match is scored by a model that did not train
// on it.
type LogisticModel struct {
	Folds       int     // 0: 4
	L2          float64 // 0: 1e-3
	MinPerClass int     // 0: 5
}

func (l *LogisticModel) Estimate(features [][]float64, decoy, train []bool) ([]float64, error) {
	n := len(features)
	if n == 0 {
		return nil, nil
	}
	folds, l2, minPerClass := l.Folds, l.L2, l.MinPerClass
	if folds <= 0 {
		folds = 4
	}
	if l2 <= 0 {
		l2 = 1e-3
	}
	if minPerClass <= 0 {
		minPerClass = 5
	}

	x := standardize(features, train)
	peps := make([]float64, n)
	for f := 0; f < folds; f++ {
		var xs [][]float64
		var ys []float64
		var decoys, targets int
		for i := range x {
			if !train[i] || i%folds == f {
				continue
			}
			xs = append(xs, x[i])
			if decoy[i] {
				ys = append(ys, 1)
				decoys++
			} else {
				ys = append(ys, 0)
				targets++
			}
		}
		if decoys < minPerClass || targets < minPerClass {
			return nil, fmt.Errorf("%w: fold %d has %d targets and %d decoys", ErrInsufficientTraining, f, targets, decoys)
		}
		w, err := fitLogistic(xs, ys, l2)
		if err != nil {
			return nil, err
		}
		for i := f; i < n; i += folds {
			peps[i] = sigmoid(w[0] + floats.Dot(w[1:], x[i]))
		}
	}
	return peps, nil
}

// standardize centers and scales every column with the mean and standard deviation of the
// training rows. Constant columns become zero.
func standardize(features [][]float64, train []bool) [][]float64 {
	dim := len(features[0])
	out := make([][]float64, len(features))
	for i := range out {
		out[i] = make([]float64, dim)
	}
	col := make([]float64, 0, len(features))
	for j := 0; j < dim; j++ {
		col = col[:0]
		for i, row := range features {
			if train[i] {
				col = append(col, row[j])
			}
		}
		mean, std := 0.0, 0.0
		if len(col) > 1 {
			mean, std = stat.MeanStdDev(col, nil)
		}
		for i, row := range features {
			if std > 0 && !math.IsNaN(std) {
				out[i][j] = (row[j] - mean) / std
			}
		}
	}
	return out
}

// fitLogistic returns bias and weights minimizing the mean logistic loss plus l2/2 |w|².
func fitLogistic(xs [][]float64, ys []float64, l2 float64) ([]float64, error) {
	dim := len(xs[0]) + 1
	n := float64(len(xs))
	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			loss := 0.0
			for i, x := range xs {
				z := w[0] + floats.Dot(w[1:], x)
				loss += math.Max(z, 0) - ys[i]*z + math.Log1p(math.Exp(-math.Abs(z)))
			}
			reg := floats.Dot(w[1:], w[1:])
			return loss/n + 0.5*l2*reg
		},
		Grad: func(grad, w []float64) {
			for j := range grad {
				grad[j] = 0
			}
			for i, x := range xs {
				r := sigmoid(w[0]+floats.Dot(w[1:], x)) - ys[i]
				grad[0] += r
				floats.AddScaled(grad[1:], r, x)
			}
			floats.Scale(1/n, grad)
			floats.AddScaled(grad[1:], l2, w[1:])
		},
	}
	result, err := optimize.Minimize(problem, make([]float64, dim), nil, &optimize.BFGS{})
	if result == nil {
		return nil, fmt.Errorf("logistic regression: %w", err)
	}
	if err != nil {
		log.Debug.Printf("logistic regression stopped early: %v", err)
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("logistic regression diverged")
		}
	}
	return result.X, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
