// Пакет openapi — встроенный OpenAPI контракт Knowledge Module и
// middleware валидации запросов по нему.
//
// Валидация включается только на основном пути регистрации /api/v1;
// резервный путь /knowledge идёт напрямую в handlers, чтобы сбой
// контракта или валидатора не лишал доступа к базе знаний целиком.
package openapi

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	apierrors "github.com/bigkaa/goknowbase/internal/api/errors"
)

//go:embed openapi.yaml
var specData []byte

// Load загружает и валидирует встроенный OpenAPI документ.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(specData)
	if err != nil {
		return nil, fmt.Errorf("загрузка OpenAPI документа: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("валидация OpenAPI документа: %w", err)
	}
	return doc, nil
}

// ValidationMiddleware возвращает middleware, проверяющий параметры
// запроса по OpenAPI контракту.
//
// Тела запросов не проверяются: декодирование загрузок выполняет
// шлюз приёма со своей машиной состояний multipart/JSON, и повторное
// чтение тела валидатором ломало бы транспортный fallback.
// Запросы к путям вне контракта пропускаются без проверки.
func ValidationMiddleware(doc *openapi3.T, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("построение OpenAPI маршрутизатора: %w", err)
	}

	log := logger.With(slog.String("component", "openapi_validator"))

	options := &openapi3filter.Options{
		ExcludeRequestBody: true,
		// Аутентификацию выполняет JWT middleware
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, findErr := router.FindRoute(r)
			if findErr != nil {
				if errors.Is(findErr, routers.ErrPathNotFound) || errors.Is(findErr, routers.ErrMethodNotAllowed) {
					next.ServeHTTP(w, r)
					return
				}
				log.Warn("Ошибка поиска маршрута в OpenAPI контракте",
					slog.String("path", r.URL.Path),
					slog.String("error", findErr.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    options,
			}

			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				var reqErr *openapi3filter.RequestError
				if errors.As(err, &reqErr) {
					apierrors.ValidationError(w, reqErr.Error())
					return
				}
				apierrors.ValidationError(w, err.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
