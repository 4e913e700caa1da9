package main

import (
	"errors"
	"fmt"

	"mcpanel/internal/launch"
	"mcpanel/internal/reconciler"
	"mcpanel/internal/services"
)

// explainError adds operator guidance to errors that reach main.
func explainError(err error) error {
	if err == nil {
		return nil
	}
	var validation *launch.ValidationError
	switch {
	case errors.As(err, &validation):
		return fmt.Errorf("%w (check --%s)", err, flagForField(validation.Field))
	case errors.Is(err, services.ErrValidation):
		return err
	case errors.Is(err, reconciler.ErrActionInFlight):
		return fmt.Errorf("%w\nserver is busy: wait for the current action to finish, then retry", err)
	case errors.Is(err, services.ErrConflict):
		return fmt.Errorf("%w\nserver is busy: it is already in that state or changing; check `mcpanel status`", err)
	case errors.Is(err, services.ErrUnavailable):
		return fmt.Errorf("%w\nthe service is unavailable; run `mcpanel check` for details", err)
	default:
		return err
	}
}

func flagForField(field string) string {
	switch field {
	case "datapacks":
		return "datapack"
	case "mods":
		return "mod"
	default:
		return field
	}
}
