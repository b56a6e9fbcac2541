package predictor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Layer is one fully connected layer: y = W x + b.
type Layer struct {
	// Weight has shape out x in.
	Weight *mat.Dense

	// Bias has length out.
	Bias *mat.VecDense
}

// Network is a stack of linear layers with ReLU between consecutive layers
// and no activation after the last.
type Network struct {
	layers []Layer
}

// NewNetwork checks that consecutive layer shapes chain and returns the network.
func NewNetwork(layers ...Layer) (*Network, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("network has no layers")
	}
	for i, l := range layers {
		r, c := l.Weight.Dims()
		if l.Bias.Len() != r {
			return nil, fmt.Errorf("layer %d: bias has %d values, weight has %d rows", i, l.Bias.Len(), r)
		}
		if i > 0 {
			prev, _ := layers[i-1].Weight.Dims()
			if c != prev {
				return nil, fmt.Errorf("layer %d: takes %d inputs, previous layer gives %d", i, c, prev)
			}
		}
	}
	return &Network{layers: layers}, nil
}

// Dims returns the layer widths {in, hidden..., out}.
func (n *Network) Dims() []int {
	_, in := n.layers[0].Weight.Dims()
	dims := []int{in}
	for _, l := range n.layers {
		r, _ := l.Weight.Dims()
		dims = append(dims, r)
	}
	return dims
}

// InputDim returns the number of inputs.
func (n *Network) InputDim() int { return n.Dims()[0] }

// OutputDim returns the number of outputs.
func (n *Network) OutputDim() int {
	r, _ := n.layers[len(n.layers)-1].Weight.Dims()
	return r
}

// Forward runs one input vector through the network.
func (n *Network) Forward(x []float64) ([]float64, error) {
	if len(x) != n.InputDim() {
		return nil, fmt.Errorf("network takes %d inputs, got %d", n.InputDim(), len(x))
	}

	v := mat.NewVecDense(len(x), append([]float64(nil), x...))
	for i, l := range n.layers {
		r, _ := l.Weight.Dims()
		out := mat.NewVecDense(r, nil)
		out.MulVec(l.Weight, v)
		out.AddVec(out, l.Bias)
		if i < len(n.layers)-1 {
			relu(out)
		}
		v = out
	}
	return mat.Col(nil, 0, v), nil
}

func relu(v *mat.VecDense) {
	for i := 0; i < v.Len(); i++ {
		if v.AtVec(i) < 0 {
			v.SetVec(i, 0)
		}
	}
}
