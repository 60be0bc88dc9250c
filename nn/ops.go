package nn

import "math"

var activations = map[string]func(float32) float32{
	"gelu":              gelu,
	"gelu_new":          geluTanh,
	"gelu_pytorch_tanh": geluTanh,
	"relu":              relu,
}

func gelu(x float32) float32 {
	return float32(0.5 * float64(x) * (1 + math.Erf(float64(x)/math.Sqrt2)))
}

func geluTanh(x float32) float32 {
	v := float64(x)
	return float32(0.5 * v * (1 + math.Tanh(math.Sqrt(2/math.Pi)*(v+0.044715*v*v*v))))
}

func relu(x float32) float32 {
	if x < 0 {
		return 0
	}
	return x
}

// linear is a dense layer with weights stored [out][in], as in PyTorch checkpoints.
type linear struct {
	w       []float32
	b       []float32
	in, out int
}

// apply computes x·Wᵀ + b for n row vectors packed in x.
func (l *linear) apply(x []float32, n int) []float32 {
	y := make([]float32, n*l.out)
	for r := 0; r < n; r++ {
		row := x[r*l.in : (r+1)*l.in]
		dst := y[r*l.out : (r+1)*l.out]
		for o := 0; o < l.out; o++ {
			w := l.w[o*l.in : (o+1)*l.in]
			var sum float32
			for i, v := range row {
				sum += v * w[i]
			}
			if l.b != nil {
				sum += l.b[o]
			}
			dst[o] = sum
		}
	}
	return y
}

type layerNorm struct {
	gamma []float32
	beta  []float32
	eps   float64
}

// apply normalizes each of the n rows of x in place.
func (ln *layerNorm) apply(x []float32, n int) {
	dim := len(ln.gamma)
	for r := 0; r < n; r++ {
		row := x[r*dim : (r+1)*dim]
		var mean float64
		for _, v := range row {
			mean += float64(v)
		}
		mean /= float64(dim)
		var variance float64
		for _, v := range row {
			d := float64(v) - mean
			variance += d * d
		}
		variance /= float64(dim)
		inv := 1 / math.Sqrt(variance+ln.eps)
		for i, v := range row {
			row[i] = float32((float64(v)-mean)*inv)*ln.gamma[i] + ln.beta[i]
		}
	}
}

// softmaxInPlace converts scores into probabilities.
func softmaxInPlace(x []float32) {
	if len(x) == 0 {
		return
	}
	maxV := x[0]
	for _, v := range x[1:] {
		if v > maxV {
			maxV = v
		}
	}
	var sum float64
	for i, v := range x {
		e := math.Exp(float64(v - maxV))
		x[i] = float32(e)
		sum += e
	}
	for i := range x {
		x[i] = float32(float64(x[i]) / sum)
	}
}

// Softmax returns the probability distribution for logits.
func Softmax(logits []float32) []float32 {
	out := append([]float32(nil), logits...)
	softmaxInPlace(out)
	return out
}

// Sigmoid maps a logit to (0, 1).
func Sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

func addInPlace(dst, src []float32) {
	for i, v := range src {
		dst[i] += v
	}
}
