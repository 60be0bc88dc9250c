package nn

import "errors"

var (
	// ErrInvalidHeader is returned when a safetensors header cannot be parsed.
	ErrInvalidHeader = errors.New("invalid safetensors header")

	// ErrUnsupportedDType is returned for tensor element types other than F32, F16 and BF16.
	ErrUnsupportedDType = errors.New("unsupported tensor dtype")

	// ErrMissingTensor is returned when a required weight is absent from the checkpoint.
	ErrMissingTensor = errors.New("missing tensor")

	// ErrShapeMismatch is returned when a weight does not have the shape the config implies.
	ErrShapeMismatch = errors.New("tensor shape mismatch")

	// ErrInvalidConfig is returned for model configs that cannot describe a BERT encoder.
	ErrInvalidConfig = errors.New("invalid model config")

	// ErrInputOutOfRange is returned when token, type or position ids exceed the model tables.
	ErrInputOutOfRange = errors.New("model input out of range")

	// ErrNoClassifier is returned by Classify on models without a classification head.
	ErrNoClassifier = errors.New("model has no classification head")
)
