package layer

import (
	"sync"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// Type tags of the built-in layers.
const (
	TypeDense         = "Dense"
	TypeReLU          = "Relu"
	TypeSoftmax       = "Softmax"
	TypeTanh          = "Tanh"
	TypeLinear        = "Linear"
	TypeSigmoid       = "Sigmoid"
	TypeELU           = "Elu"
	TypeConvolutional = "Convolutional"
	TypeMaxPool       = "MaxPool"
	TypeAveragePool   = "AveragePool"
	TypeDropout       = "Dropout"
	TypeConcatenate   = "Concatenate"
	TypeRecurrent     = "Recurrent"
	TypeMSELoss       = "MSELoss"
	TypeCCELoss       = "CCELoss"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Layer{}
)

func init() {
	list := map[string]func() Layer{
		TypeDense:         func() Layer { return &Dense{base: newBase(TypeDense)} },
		TypeReLU:          func() Layer { return NewReLU(0) },
		TypeSoftmax:       func() Layer { return NewSoftmax(0) },
		TypeTanh:          func() Layer { return NewTanh(0) },
		TypeLinear:        func() Layer { return NewLinear(0) },
		TypeSigmoid:       func() Layer { return NewSigmoid(0) },
		TypeELU:           func() Layer { return NewELU(0, 1) },
		TypeConvolutional: func() Layer { return &Convolutional{base: newBase(TypeConvolutional)} },
		TypeMaxPool:       func() Layer { return &MaxPool{pool: pool{base: newBase(TypeMaxPool)}} },
		TypeAveragePool:   func() Layer { return &AveragePool{pool: pool{base: newBase(TypeAveragePool)}} },
		TypeDropout:       func() Layer { return NewDropout(0, 0) },
		TypeConcatenate:   func() Layer { return &Concatenate{base: newBase(TypeConcatenate)} },
		TypeRecurrent:     func() Layer { return &Recurrent{base: newBase(TypeRecurrent)} },
		TypeMSELoss:       func() Layer { return NewMSELoss(0, 0, 1) },
		TypeCCELoss:       func() Layer { return NewCCELoss(0, 1) },
	}

	for typ, f := range list {
		if err := Register(typ, f); err != nil {
			panic(err.Error())
		}
	}
}

// Register adds a layer constructor under typ. The constructor must return
// an unconfigured layer that Load can fill in.
func Register(typ string, f func() Layer) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[typ]; ok {
		return errors.Wrapf(ErrDuplicateType, "%q", typ)
	}
	registry[typ] = f
	return nil
}

// New returns an unconfigured layer of the given type.
func New(typ string) (Layer, error) {
	registryMu.RLock()
	f, ok := registry[typ]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "%q", typ)
	}
	return f(), nil
}

// FromDump creates a layer of the dumped type and loads it.
func FromDump(s *structpb.Struct) (Layer, error) {
	l, err := New(s.GetFields()[fieldType].GetStringValue())
	if err != nil {
		return nil, err
	}
	if err := l.Load(s); err != nil {
		return nil, err
	}
	return l, nil
}

var (
	_ Layer     = (*Dense)(nil)
	_ Layer     = (*Activation)(nil)
	_ Layer     = (*Convolutional)(nil)
	_ Layer     = (*MaxPool)(nil)
	_ Layer     = (*AveragePool)(nil)
	_ Layer     = (*Dropout)(nil)
	_ Layer     = (*Concatenate)(nil)
	_ Layer     = (*Recurrent)(nil)
	_ LossLayer = (*MSELoss)(nil)
	_ LossLayer = (*CCELoss)(nil)
)
