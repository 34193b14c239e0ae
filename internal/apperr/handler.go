package apperr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

func GlobalErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var fe *FetchError
		if errors.As(err, &fe) {
			_ = c.JSON(http.StatusBadGateway, map[string]string{"error": fe.Error(), "title": "fetch error"})
			return
		}

		var pe *ParseError
		if errors.As(err, &pe) {
			_ = c.JSON(http.StatusBadGateway, map[string]string{"error": pe.Error(), "title": "parse error"})
			return
		}

		var se *StorageError
		if errors.As(err, &se) {
			_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": se.Error(), "title": "storage error"})
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := fmt.Sprintf("%v", he.Message)
			_ = c.JSON(he.Code, map[string]string{"error": msg})
			return
		}

		slog.Error("Unhandled error", "error", err)
		_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
