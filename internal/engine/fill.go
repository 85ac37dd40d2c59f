package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
)

// Fill writes profile values into the detected controls in detection order
// and returns how many were filled. A failure in one field never stops the
// rest; cancellation stops before the next field.
func (e *Engine) Fill(ctx context.Context, result DetectionResult, profile domain.Profile) int {
	filled := 0
	for _, c := range result.Candidates {
		if ctx.Err() != nil {
			e.logger.Debug("fill abandoned", zap.Error(ctx.Err()))
			break
		}

		value, ok := profile.Value(c.ProfileField())
		if !ok {
			continue
		}

		if e.fillOne(c, value) {
			filled++
			continue
		}
		e.metrics.RecordFillFailure(c.Element.Kind.String())
	}
	return filled
}

// fillOne dispatches on the control kind and reports whether a value was
// written. Panics inside a strategy count as a non-fill.
func (e *Engine) fillOne(c Candidate, value any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("error filling field",
				zap.String("mapping", c.MappingKey()),
				zap.Any("panic", r),
			)
			ok = false
		}
	}()

	el := c.Element
	switch el.Kind {
	case dom.KindSelect:
		ok = fillSelect(el, value, c)
	case dom.KindRadio:
		ok = fillRadio(el, value, c)
	case dom.KindCheckbox:
		ok = fillCheckbox(el, value)
	case dom.KindTextarea, dom.KindText, dom.KindURL, dom.KindDate:
		ok = fillText(el, value)
	case dom.KindHidden:
		ok = false
	default:
		ok = fillText(el, value)
	}

	if ok {
		e.logger.Debug("field filled",
			zap.String("mapping", c.MappingKey()),
			zap.String("kind", el.Kind.String()),
		)
	} else {
		e.logger.Debug("field not filled",
			zap.String("mapping", c.MappingKey()),
			zap.String("kind", el.Kind.String()),
			zap.String("value", fmt.Sprint(value)),
		)
	}
	return ok
}

func fillText(el *dom.Element, value any) bool {
	el.SetValue(domain.FormatValue(value))
	notify(el)
	return true
}

func fillCheckbox(el *dom.Element, value any) bool {
	el.SetChecked(domain.Truthy(value))
	notify(el)
	return true
}

func fillSelect(el *dom.Element, value any, c Candidate) bool {
	v := domain.FormatValue(value)
	opts := el.Options()

	for _, o := range opts {
		if strings.EqualFold(o.Value, v) {
			el.SelectOption(o)
			notify(el)
			return true
		}
	}

	synonyms, ok := c.Rule.Mapping.Synonyms(v)
	if !ok {
		return false
	}
	for _, o := range opts {
		text := strings.ToLower(strings.TrimSpace(o.Text))
		optValue := strings.ToLower(o.Value)
		for _, s := range synonyms {
			s = strings.ToLower(s)
			if strings.Contains(text, s) || strings.Contains(optValue, s) {
				el.SelectOption(o)
				notify(el)
				return true
			}
		}
	}
	return false
}

func fillRadio(el *dom.Element, value any, c Candidate) bool {
	synonyms, ok := c.Rule.Mapping.Synonyms(domain.FormatValue(value))
	if !ok {
		return false
	}

	for _, radio := range el.RadioGroup() {
		radioValue := strings.ToLower(strings.TrimSpace(radio.Value()))
		radioLabel := strings.ToLower(strings.TrimSpace(radio.LabelText()))
		radioID := strings.ToLower(radio.ID())

		for _, s := range synonyms {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			if strings.Contains(radioValue, s) ||
				strings.Contains(radioLabel, s) ||
				strings.Contains(radioID, s) ||
				(radioValue != "" && strings.Contains(s, radioValue)) {
				radio.SetChecked(true)
				notify(radio)
				return true
			}
		}
	}
	return false
}

// notify dispatches the bubbling input, change and blur events that reactive
// frameworks listen for.
func notify(el *dom.Element) {
	el.Dispatch(dom.NotifyEvents...)
}
