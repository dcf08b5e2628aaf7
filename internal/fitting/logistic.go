package fitting

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"fundcast/domain/campaign"
	"fundcast/domain/model"
	"fundcast/internal/errors"
)

const (
	logisticMaxIter = 100
	logisticTol     = 1e-8
)

// FitLogistic estimates the goal-attainment model
//
//	met_goal ~ log10(goal) * is_kickstarter
//
// by maximum likelihood via iteratively-reweighted least squares over the
// full two-platform dataset. Standard errors and Wald p-values come from the
// inverse Fisher information at the optimum; they are diagnostic only.
//
// Fails with FIT_DIVERGENCE when the optimizer does not converge within the
// iteration bound or the weighted normal equations become singular.
func FitLogistic(d campaign.Dataset) (*model.LogisticFit, error) {
	if err := d.Validate(); err != nil {
		return nil, errors.Wrap(err, "logistic fit input")
	}
	n := len(d)
	if n < 8 {
		return nil, errors.InvalidInput("logistic fit needs at least 8 records")
	}

	// Design matrix columns: 1, log10(goal), is_kickstarter, interaction.
	const k = 4
	x := make([][k]float64, n)
	y := make([]float64, n)
	met, under := 0, 0
	for i, r := range d {
		lg := math.Log10(r.GoalUSD)
		ks := 0.0
		if r.Platform == campaign.Kickstarter {
			ks = 1.0
		}
		x[i] = [k]float64{1, lg, ks, lg * ks}
		if r.MetGoal {
			y[i] = 1
			met++
		} else {
			under++
		}
	}
	if met == 0 || under == 0 {
		return nil, errors.FitDivergence("outcome has no variation; likelihood is unbounded")
	}

	beta := make([]float64, k)
	iterations := 0
	for iter := 0; iter < logisticMaxIter; iter++ {
		iterations = iter + 1

		// Accumulate the weighted normal equations X'WX and X'Wz.
		a := mat.NewSymDense(k, nil)
		b := mat.NewVecDense(k, nil)
		for i := 0; i < n; i++ {
			eta := 0.0
			for j := 0; j < k; j++ {
				eta += x[i][j] * beta[j]
			}
			mu := sigmoid(eta)
			w := mu * (1 - mu)
			if w < 1e-10 {
				w = 1e-10
			}
			z := eta + (y[i]-mu)/w
			for j := 0; j < k; j++ {
				for l := j; l < k; l++ {
					a.SetSym(j, l, a.At(j, l)+w*x[i][j]*x[i][l])
				}
				b.SetVec(j, b.AtVec(j)+w*x[i][j]*z)
			}
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(a); !ok {
			return nil, errors.FitDivergence("weighted normal equations are singular")
		}
		var next mat.VecDense
		if err := chol.SolveVecTo(&next, b); err != nil {
			return nil, errors.FitDivergence("weighted least squares step failed")
		}

		delta := 0.0
		for j := 0; j < k; j++ {
			delta = math.Max(delta, math.Abs(next.AtVec(j)-beta[j]))
			beta[j] = next.AtVec(j)
		}
		for j := 0; j < k; j++ {
			if math.IsNaN(beta[j]) || math.IsInf(beta[j], 0) {
				return nil, errors.FitDivergence("coefficients diverged to non-finite values")
			}
		}
		if delta < logisticTol {
			return assembleLogisticFit(x, beta, iterations)
		}
	}

	return nil, errors.FitDivergence("IRLS did not converge within iteration bound")
}

// assembleLogisticFit computes standard errors and Wald p-values from the
// Fisher information at the converged coefficients.
func assembleLogisticFit(x [][4]float64, beta []float64, iterations int) (*model.LogisticFit, error) {
	const k = 4
	info := mat.NewSymDense(k, nil)
	for i := range x {
		eta := 0.0
		for j := 0; j < k; j++ {
			eta += x[i][j] * beta[j]
		}
		mu := sigmoid(eta)
		w := mu * (1 - mu)
		for j := 0; j < k; j++ {
			for l := j; l < k; l++ {
				info.SetSym(j, l, info.At(j, l)+w*x[i][j]*x[i][l])
			}
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(info); !ok {
		return nil, errors.FitDivergence("Fisher information is singular at the optimum")
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, errors.FitDivergence("could not invert Fisher information")
	}

	coef := func(j int) model.Coefficient {
		se := math.Sqrt(cov.At(j, j))
		z := beta[j] / se
		p := 2 * distuv.UnitNormal.Survival(math.Abs(z))
		return model.Coefficient{Estimate: beta[j], StdErr: se, PValue: p}
	}

	return &model.LogisticFit{
		Intercept:      coef(0),
		LogGoalSlope:   coef(1),
		PlatformEffect: coef(2),
		Interaction:    coef(3),
		Iterations:     iterations,
	}, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
