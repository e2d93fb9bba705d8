package bayes

import (
	"fmt"

	"mediamix-lab/internal/domain"
	"mediamix-lab/internal/response"
)

// MeanParams assembles the posterior-mean parameter vector for a composer
// built from the same channels and controls as the model.
func MeanParams(model *domain.FittedModel, c *response.Composer) (response.Params, error) {
	if c.NumChannels() != len(model.Channels) {
		return response.Params{}, fmt.Errorf("composer has %d channels, model has %d", c.NumChannels(), len(model.Channels))
	}
	p := response.Params{
		Channels: make([]response.ChannelParams, len(model.Channels)),
		Linear:   make([]float64, c.NumLinear()),
	}
	for i, name := range c.LinearNames() {
		v, ok := model.MeanOf(name)
		if !ok {
			return response.Params{}, fmt.Errorf("model carries no parameter %q", name)
		}
		p.Linear[i] = v
	}
	for k, spec := range model.Channels {
		cp, err := model.ChannelParameters(spec.Name)
		if err != nil {
			return response.Params{}, err
		}
		p.Channels[k] = response.ChannelParams{
			Decay: cp.Decay,
			Kappa: cp.Kappa,
			Shape: cp.Shape,
			Beta:  cp.Beta,
		}
	}
	return p, nil
}

// DrawParams assembles the parameter vector of a single posterior draw,
// indexed in the model's merged chain-major order.
func DrawParams(model *domain.FittedModel, c *response.Composer, draw int) (response.Params, error) {
	if c.NumChannels() != len(model.Channels) {
		return response.Params{}, fmt.Errorf("composer has %d channels, model has %d", c.NumChannels(), len(model.Channels))
	}
	if draw < 0 || draw >= model.NumDraws() {
		return response.Params{}, fmt.Errorf("draw %d out of range [0,%d)", draw, model.NumDraws())
	}

	at := func(name string) (float64, error) {
		xs, ok := model.SamplesOf(name)
		if !ok || draw >= len(xs) {
			return 0, fmt.Errorf("model carries no draws for parameter %q", name)
		}
		return xs[draw], nil
	}

	p := response.Params{
		Channels: make([]response.ChannelParams, len(model.Channels)),
		Linear:   make([]float64, c.NumLinear()),
	}
	for i, name := range c.LinearNames() {
		v, err := at(name)
		if err != nil {
			return response.Params{}, err
		}
		p.Linear[i] = v
	}
	for k, spec := range model.Channels {
		var err error
		if p.Channels[k].Beta, err = at(domain.BetaParam(spec.Name)); err != nil {
			return response.Params{}, err
		}
		if p.Channels[k].Decay, err = at(domain.DecayParam(spec.Name)); err != nil {
			return response.Params{}, err
		}
		if p.Channels[k].Kappa, err = at(domain.KappaParam(spec.Name)); err != nil {
			return response.Params{}, err
		}
		if p.Channels[k].Shape, err = at(domain.ShapeParam(spec.Name)); err != nil {
			return response.Params{}, err
		}
	}
	return p, nil
}
