// Package model provides the shared estimator interfaces and state machine
// used by the reduction and approximation strategies.
package model

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}
