package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime"
	"net/url"
	"strconv"
	"strings"

	"catalog/internal/models"
	"catalog/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Listing defaults applied when page or limit are missing or invalid.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// EventPublisher receives product events after each successful mutation.
type EventPublisher interface {
	PublishProductEvent(ctx context.Context, event models.ProductEvent) error
}

type nopPublisher struct{}

func (nopPublisher) PublishProductEvent(context.Context, models.ProductEvent) error { return nil }

// ProductService handles business logic related to products.
type ProductService struct {
	repo      repositories.ProductRepository
	publisher EventPublisher
	logger    *zap.Logger
	validate  *validator.Validate
}

// Option configures a ProductService.
type Option func(*ProductService)

// WithPublisher sets the event publisher. Events are dropped by default.
func WithPublisher(p EventPublisher) Option {
	return func(s *ProductService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *ProductService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, opts ...Option) *ProductService {
	s := &ProductService{
		repo:      repo,
		publisher: nopPublisher{},
		logger:    zap.NewNop(),
		validate:  validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type createInput struct {
	Name  string  `validate:"required"`
	Price float64 `validate:"gt=0"`
}

type updateInput struct {
	Name  *string  `validate:"omitnil,min=1"`
	Price *float64 `validate:"omitnil,gt=0"`

	Description    *string
	HasDescription bool
}

// Create validates the submitted form fields and stores a new product.
func (s *ProductService) Create(ctx context.Context, form url.Values) (*models.Product, error) {
	in := createInput{
		Name:  strings.TrimSpace(form.Get("nome")),
		Price: parsePrice(form.Get("preco")),
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, s.validationError(err, MsgNameRequired)
	}

	product := &models.Product{
		Name:        in.Name,
		Price:       in.Price,
		Description: normalizeDescription(form.Get("descricao")),
	}
	if err := s.repo.Create(ctx, product); err != nil {
		s.logger.Error("failed to create product", zap.Error(err))
		return nil, newError(KindInternal, MsgCreateFailed, err)
	}

	s.logger.Info("product created", zap.Uint("id", product.ID), zap.String("nome", product.Name))
	s.publish(ctx, models.EventProductCreated, product)
	return product, nil
}

// ListQuery holds the parsed listing parameters.
type ListQuery struct {
	Field    string
	Search   string
	MinPrice *float64
	MaxPrice *float64
	Page     int
	Limit    int
}

// ProductPage is one page of a listing.
type ProductPage struct {
	Items      []models.Product
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// ParseListQuery reads listing parameters. Unknown fields and invalid numbers
// fall back to their defaults instead of failing.
func ParseListQuery(q url.Values) ListQuery {
	field := q.Get("campo")
	if field == "" {
		field = q.Get("field")
	}
	return ListQuery{
		Field:    canonicalField(field),
		Search:   strings.TrimSpace(q.Get("search")),
		MinPrice: optionalFloat(firstOf(q, "minPreco", "minPrice")),
		MaxPrice: optionalFloat(firstOf(q, "maxPreco", "maxPrice")),
		Page:     positiveInt(q.Get("page"), DefaultPage),
		Limit:    positiveInt(q.Get("limit"), DefaultLimit),
	}
}

// List returns the requested page of products ordered by ascending id.
func (s *ProductService) List(ctx context.Context, q ListQuery) (*ProductPage, error) {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	// (page-1)*limit must fit in an int
	if maxPage := math.MaxInt / q.Limit; q.Page > maxPage {
		q.Page = maxPage
	}

	opts := repositories.ListOptions{
		Filter: repositories.ProductFilter{Field: q.Field},
		Order:  repositories.OrderIDAsc,
		Limit:  q.Limit,
		Offset: (q.Page - 1) * q.Limit,
	}
	switch q.Field {
	case repositories.FieldName, repositories.FieldDescription:
		opts.Filter.Search = q.Search
	case repositories.FieldPrice:
		opts.Filter.MinPrice = q.MinPrice
		opts.Filter.MaxPrice = q.MaxPrice
	}

	items, total, err := s.repo.FindAll(ctx, opts)
	if err != nil {
		s.logger.Error("failed to list products", zap.Error(err))
		return nil, newError(KindInternal, MsgListFailed, err)
	}
	return &ProductPage{
		Items:      items,
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: pageCount(total, q.Limit),
	}, nil
}

func pageCount(total int64, limit int) int {
	n := total / int64(limit)
	if total%int64(limit) != 0 {
		n++
	}
	return int(n)
}

// Get retrieves a single product by its raw path id.
func (s *ProductService) Get(ctx context.Context, rawID string) (*models.Product, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, id, MsgGetFailed)
}

// Update applies a partial update. Every present field is validated before any
// of them is applied. The body is JSON unless contentType says it is a form.
func (s *ProductService) Update(ctx context.Context, rawID string, body []byte, contentType string) (*models.Product, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	product, err := s.find(ctx, id, MsgUpdateFailed)
	if err != nil {
		return nil, err
	}

	var in *updateInput
	if isForm(contentType) {
		in, err = decodeFormPatch(body)
	} else {
		in, err = decodeJSONPatch(body)
	}
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, s.validationError(err, MsgNameEmpty)
	}

	if in.Name != nil {
		product.Name = *in.Name
	}
	if in.Price != nil {
		product.Price = *in.Price
	}
	if in.HasDescription {
		product.Description = in.Description
	}

	if err := s.repo.Save(ctx, product); err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return nil, newError(KindNotFound, MsgNotFound, err)
		}
		s.logger.Error("failed to update product", zap.Uint("id", id), zap.Error(err))
		return nil, newError(KindInternal, MsgUpdateFailed, err)
	}

	s.logger.Info("product updated", zap.Uint("id", product.ID))
	s.publish(ctx, models.EventProductUpdated, product)
	return product, nil
}

// Delete permanently removes a product and returns its id.
func (s *ProductService) Delete(ctx context.Context, rawID string) (uint, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return 0, err
	}
	product, err := s.find(ctx, id, MsgDeleteFailed)
	if err != nil {
		return 0, err
	}

	if err := s.repo.Delete(ctx, product); err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return 0, newError(KindNotFound, MsgNotFound, err)
		}
		s.logger.Error("failed to delete product", zap.Uint("id", id), zap.Error(err))
		return 0, newError(KindInternal, MsgDeleteFailed, err)
	}

	s.logger.Info("product deleted", zap.Uint("id", id))
	s.publish(ctx, models.EventProductDeleted, product)
	return id, nil
}

// ParseID accepts only positive base-10 integers without sign or spaces.
func ParseID(raw string) (uint, error) {
	if raw == "" || raw[0] < '0' || raw[0] > '9' {
		return 0, newError(KindInvalidID, MsgInvalidID, nil)
	}
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || id == 0 {
		return 0, newError(KindInvalidID, MsgInvalidID, err)
	}
	return uint(id), nil
}

func (s *ProductService) find(ctx context.Context, id uint, failMsg string) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return nil, newError(KindNotFound, MsgNotFound, err)
		}
		s.logger.Error("failed to load product", zap.Uint("id", id), zap.Error(err))
		return nil, newError(KindInternal, failMsg, err)
	}
	return product, nil
}

func (s *ProductService) publish(ctx context.Context, eventType string, p *models.Product) {
	if err := s.publisher.PublishProductEvent(ctx, models.NewProductEvent(eventType, p)); err != nil {
		s.logger.Warn("failed to publish product event",
			zap.String("type", eventType), zap.Uint("id", p.ID), zap.Error(err))
	}
}

// validationError reports the first failing field. Fields are checked in
// declaration order, so name problems win over price problems.
func (s *ProductService) validationError(err error, nameMsg string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return newError(KindInternal, MsgInternal, err)
	}
	switch verrs[0].Field() {
	case "Name":
		return newError(KindValidation, nameMsg, nil)
	default:
		return newError(KindValidation, MsgInvalidPrice, nil)
	}
}

func decodeJSONPatch(body []byte) (*updateInput, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, newError(KindMalformedPayload, MsgInvalidJSON, err)
	}

	in := &updateInput{}
	if v, ok := lookup(raw, "nome", "name"); ok {
		// null and non-string names stay empty and fail validation
		var name string
		_ = json.Unmarshal(v, &name)
		name = strings.TrimSpace(name)
		in.Name = &name
	}
	if v, ok := lookup(raw, "preco", "price"); ok {
		price := jsonPrice(v)
		in.Price = &price
	}
	if v, ok := lookup(raw, "descricao", "description"); ok {
		in.HasDescription = true
		if !isNull(v) {
			var desc string
			if err := json.Unmarshal(v, &desc); err != nil {
				return nil, newError(KindMalformedPayload, MsgInvalidJSON, err)
			}
			in.Description = normalizeDescription(desc)
		}
	}
	return in, nil
}

func decodeFormPatch(body []byte) (*updateInput, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, newError(KindMalformedPayload, MsgInvalidForm, err)
	}

	in := &updateInput{}
	if form.Has("nome") {
		name := strings.TrimSpace(form.Get("nome"))
		in.Name = &name
	}
	if form.Has("preco") {
		price := parsePrice(form.Get("preco"))
		in.Price = &price
	}
	if form.Has("descricao") {
		in.HasDescription = true
		in.Description = normalizeDescription(form.Get("descricao"))
	}
	return in, nil
}

func lookup(raw map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func isNull(v json.RawMessage) bool {
	return strings.TrimSpace(string(v)) == "null"
}

// jsonPrice accepts JSON numbers and numeric strings. Anything else yields 0,
// which fails validation.
func jsonPrice(v json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return finite(f)
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return parsePrice(s)
	}
	return 0
}

func parsePrice(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func normalizeDescription(raw string) *string {
	desc := strings.TrimSpace(raw)
	if desc == "" {
		return nil
	}
	return &desc
}

func isForm(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == fiber.MIMEApplicationForm
}

func canonicalField(field string) string {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "nome", "name":
		return repositories.FieldName
	case "descricao", "description":
		return repositories.FieldDescription
	case "preco", "price":
		return repositories.FieldPrice
	default:
		return ""
	}
}

func firstOf(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

func optionalFloat(raw string) *float64 {
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}
