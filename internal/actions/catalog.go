package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"minimarket-copilot/internal/core"
	"minimarket-copilot/internal/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
)

// Result is what every executor returns. Message is always set, in Spanish,
// and safe to read back to the store owner.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Services are the store operations executors call into.
type Services struct {
	Products  core.ProductService
	Inventory core.InventoryService
	Reports   core.ReportingService
	Parties   core.PartyService
	Stores    core.StoreService
}

// Definition is one catalog entry: its schema for the model and a typed executor.
type Definition struct {
	Name        Name
	Description string
	Schema      map[string]any

	decode func(raw json.RawMessage) (any, error)
	exec   func(ctx context.Context, storeID uuid.UUID, params any) Result
}

// ValidationError wraps decoding or validation failures of action parameters.
type ValidationError struct {
	Action Name
	Fields map[string]string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid parameters for %s: %v", e.Action, e.Err)
	}
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+" "+msg)
	}
	return fmt.Sprintf("invalid parameters for %s: %s", e.Action, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Catalog is the closed table from action name to executor.
type Catalog struct {
	defs     map[Name]Definition
	validate *validator.Validate
	log      *logger.Logger
	svc      Services
	now      func() time.Time
}

// NewCatalog builds every definition once and fails if any name in AllNames
// lacks an executor or a schema.
func NewCatalog(svc Services, log *logger.Logger) (*Catalog, error) {
	if log == nil {
		log = logger.Nop()
	}
	c := &Catalog{
		defs:     make(map[Name]Definition),
		validate: newValidator(),
		log:      log,
		svc:      svc,
		now:      time.Now,
	}

	defs := []Definition{
		define(AddStock, "Add units of an existing product to stock as a new lot.", c.addStock),
		define(SetPrice, "Set a product's gross sale price.", c.setPrice),
		define(MarkExpired, "Write off expired units of a product, soonest-expiring lots first.", c.markExpired),
		define(AdjustStock, "Correct a product's stock by a signed quantity with a reason.", c.adjustStock),
		define(AskMetric, "Answer a question about stock levels, sales or expiring products.", c.askMetric),
		define(CreateSale, "Register a sale of one or more products. Fails entirely if any product lacks stock.", c.createSale),
		define(CreatePurchase, "Register a purchase of one or more products, adding a stock lot per line.", c.createPurchase),
		define(CreateProduct, "Create a new product in the store catalog.", c.createProduct),
		define(CreateManyProducts, "Create up to 50 products at once.", c.createManyProducts),
		define(UpdateProduct, "Edit an existing product's fields.", c.updateProduct),
		define(DeleteManyProducts, "Remove up to 50 products from the store catalog.", c.deleteManyProducts),
		define(GetProduct, "Look up one product with its price and available stock.", c.getProduct),
		define(ListProducts, "List catalog products with available stock.", c.listProducts),
		define(ListStockLots, "List a product's stock lots in consumption order.", c.listStockLots),
		define(CreateSupplier, "Create a supplier.", c.createSupplier),
		define(ListSuppliers, "List suppliers.", c.listSuppliers),
		define(CreateCustomer, "Create a customer.", c.createCustomer),
		define(ListCustomers, "List customers.", c.listCustomers),
		define(CreateProductAlert, "Create a low-stock or expiry alert for a product.", c.createProductAlert),
		define(ListProductAlerts, "List product alerts.", c.listProductAlerts),
		define(Other, "Use when the request matches no other action.", c.other),
	}

	reflector := jsonschema.Reflector{AllowAdditionalProperties: false, DoNotReference: true}
	for _, d := range defs {
		if _, dup := c.defs[d.Name]; dup {
			return nil, fmt.Errorf("action %s defined twice", d.Name)
		}
		schema, err := schemaFor(reflector, d)
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", d.Name, err)
		}
		d.Schema = schema
		c.defs[d.Name] = d
	}
	for _, n := range allNames {
		if _, ok := c.defs[n]; !ok {
			return nil, fmt.Errorf("action %s has no executor", n)
		}
	}
	return c, nil
}

// define binds a typed executor to its parameter struct P.
func define[P any](name Name, description string, exec func(ctx context.Context, storeID uuid.UUID, p *P) Result) Definition {
	return Definition{
		Name:        name,
		Description: description,
		decode: func(raw json.RawMessage) (any, error) {
			p := new(P)
			if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
				return p, nil
			}
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(p); err != nil {
				return nil, err
			}
			return p, nil
		},
		exec: func(ctx context.Context, storeID uuid.UUID, params any) Result {
			return exec(ctx, storeID, params.(*P))
		},
	}
}

func schemaFor(r jsonschema.Reflector, d Definition) (map[string]any, error) {
	proto, err := d.decode(nil)
	if err != nil {
		return nil, err
	}
	s := r.Reflect(proto)
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	delete(m, "$schema")
	delete(m, "$id")
	return m, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := parseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// Definitions returns the catalog in AllNames order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, 0, len(allNames))
	for _, n := range allNames {
		out = append(out, c.defs[n])
	}
	return out
}

func (c *Catalog) Get(name Name) (Definition, bool) {
	d, ok := c.defs[name]
	return d, ok
}

// Validate decodes raw into the action's parameter struct and checks it.
func (c *Catalog) Validate(name Name, raw json.RawMessage) (any, error) {
	d, ok := c.defs[name]
	if !ok {
		return nil, &ValidationError{Action: name, Err: fmt.Errorf("unknown action")}
	}
	params, err := d.decode(raw)
	if err != nil {
		return nil, &ValidationError{Action: name, Err: err}
	}
	if err := c.validate.Struct(params); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fieldPath(fe)] = validationMessage(fe)
			}
			return nil, &ValidationError{Action: name, Fields: fields, Err: err}
		}
		return nil, &ValidationError{Action: name, Err: err}
	}
	return params, nil
}

// Execute validates and runs one action for the store. It never returns an
// error: every failure becomes a Result with OK false.
func (c *Catalog) Execute(ctx context.Context, storeID uuid.UUID, name Name, raw json.RawMessage) Result {
	params, err := c.Validate(name, raw)
	if err != nil {
		c.log.Warn(c.log.WithFields(ctx, map[string]any{"action": string(name), "error": err.Error()}),
			"invalid action parameters")
		return Result{OK: false, Message: InvalidParamsMessage(name)}
	}
	return c.defs[name].exec(ctx, storeID, params)
}

// InvalidParamsMessage is the fixed user-facing text for rejected parameters.
func InvalidParamsMessage(name Name) string {
	return fmt.Sprintf("Parámetros inválidos para la acción %s.", name)
}

// fieldPath drops the root struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "ne":
		return fmt.Sprintf("must not be %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "uuid":
		return "must be a valid id"
	case "isodate":
		return "must be a date (YYYY-MM-DD) or RFC3339 timestamp"
	}
	return "is invalid"
}

// parseDate accepts RFC3339 or a plain calendar date (midnight UTC).
func parseDate(s string) (time.Time, error) {
	return parseDateIn(s, time.UTC)
}

// parseDateIn anchors a plain calendar date at midnight in loc.
func parseDateIn(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, s, loc)
}

func isDateOnly(s string) bool {
	_, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	return err == nil
}
