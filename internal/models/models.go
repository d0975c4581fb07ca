// Package models maps model names used in flags and configuration
// to noise-suppression factories.
package models

import (
	"fmt"

	"github.com/xaionaro-go/rtdenoise/pkg/noisesuppression"
	"github.com/xaionaro-go/rtdenoise/pkg/noisesuppression/implementations/fvad"
	"github.com/xaionaro-go/rtdenoise/pkg/noisesuppression/implementations/rnnoise"
)

const (
	NameRNNoise = "rnnoise"
	NameFVAD    = "fvad"
	NameDummy   = "dummy"
)

func Names() []string {
	return []string{NameRNNoise, NameFVAD, NameDummy}
}

// Factory returns the factory of the named model. fvadMode is used
// only by the fvad model.
func Factory(name string, fvadMode int) (noisesuppression.Factory, error) {
	switch name {
	case NameRNNoise:
		return rnnoise.Factory, nil
	case NameFVAD:
		return fvad.NewFactory(fvad.Mode(fvadMode)), nil
	case NameDummy:
		return noisesuppression.DummyFactory(), nil
	}
	return nil, fmt.Errorf("unknown model '%s', known models: %v", name, Names())
}
