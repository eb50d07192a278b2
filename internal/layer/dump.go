package layer

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
)

// Field names of a dumped layer.
const (
	fieldType        = "type"
	fieldName        = "name"
	fieldInputShape  = "input_shape"
	fieldOutputShape = "output_shape"
	fieldParams      = "params"
	fieldHyper       = "hyperparameters"
)

func shapeToList(s LayerShape) []interface{} {
	out := make([]interface{}, s.Len())
	for i, sh := range s.shapes {
		out[i] = []interface{}{sh.Height, sh.Width, sh.Channels}
	}
	return out
}

func shapeFromValue(v *structpb.Value) (LayerShape, error) {
	var shapes []dlmath.Shape3d
	for _, item := range v.GetListValue().GetValues() {
		dims := item.GetListValue().GetValues()
		if len(dims) != dlmath.NumAxes {
			return LayerShape{}, errors.Wrapf(ErrMalformedDump, "shape has %d axes", len(dims))
		}
		shapes = append(shapes, dlmath.Shape3d{
			Height:   int(dims[0].GetNumberValue()),
			Width:    int(dims[1].GetNumberValue()),
			Channels: int(dims[2].GetNumberValue()),
		})
	}
	return NewLayerShape(shapes...), nil
}

// dump encodes the shared layer state plus the variant's hyperparameters.
func dump(l Layer, hyper map[string]interface{}) (*structpb.Struct, error) {
	params := make([]interface{}, l.ParamCount())
	for i, p := range l.Params() {
		params[i] = p
	}
	if hyper == nil {
		hyper = map[string]interface{}{}
	}
	s, err := structpb.NewStruct(map[string]interface{}{
		fieldType:        l.Type(),
		fieldName:        l.Name(),
		fieldInputShape:  shapeToList(l.InputShape()),
		fieldOutputShape: shapeToList(l.OutputShape()),
		fieldParams:      params,
		fieldHyper:       hyper,
	})
	return s, errors.Wrapf(err, "dump %s %q", l.Type(), l.Name())
}

// load restores a layer dumped by dump. setHyper receives the variant's
// hyperparameters and runs before the input shape is applied, so that the
// output shape and parameter count can be derived from them.
func load(l Layer, s *structpb.Struct, setHyper func(h map[string]*structpb.Value) error) error {
	f := s.GetFields()
	if typ := f[fieldType].GetStringValue(); typ != l.Type() {
		return errors.Wrapf(ErrMalformedDump, "type %q loaded into %s", typ, l.Type())
	}
	l.SetName(f[fieldName].GetStringValue())

	if setHyper != nil {
		if err := setHyper(f[fieldHyper].GetStructValue().GetFields()); err != nil {
			return errors.Wrapf(err, "load %s %q", l.Type(), l.Name())
		}
	}

	in, err := shapeFromValue(f[fieldInputShape])
	if err != nil {
		return err
	}
	if in.Size() > 0 {
		if err := l.SetInputShape(in); err != nil {
			return err
		}
	}

	values := f[fieldParams].GetListValue().GetValues()
	if len(values) != l.ParamCount() {
		return errors.Wrapf(ErrMalformedDump, "%s %q: %d params, want %d",
			l.Type(), l.Name(), len(values), l.ParamCount())
	}
	params := l.Params()
	for i, v := range values {
		params[i] = v.GetNumberValue()
	}
	return nil
}

func hyperInt(h map[string]*structpb.Value, key string) int {
	return int(h[key].GetNumberValue())
}

func hyperShape2d(h map[string]*structpb.Value, key string) dlmath.Shape2d {
	dims := h[key].GetListValue().GetValues()
	if len(dims) != 2 {
		return dlmath.Shape2d{}
	}
	return dlmath.Shape2d{Height: int(dims[0].GetNumberValue()), Width: int(dims[1].GetNumberValue())}
}

func shape2dToList(s dlmath.Shape2d) []interface{} {
	return []interface{}{s.Height, s.Width}
}
