package returns

import (
	"context"
	"errors"
	"io"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"returnbox_back_end/internal/courier"
	"returnbox_back_end/internal/repository"
)

// BlobStore reçoit les photos de retour et les logos de boutique
type BlobStore interface {
	Upload(ctx context.Context, objectPath string, body io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, objectPath string) error
}

// Upload est un fichier reçu d'un formulaire multipart
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Options struct {
	Conditions   ConditionSet
	Location     *time.Location
	Now          func() time.Time
	MaxPhotoSize int64
	Blobs        BlobStore
}

// Service applique les règles du cycle de vie des retours sur un Store
type Service struct {
	store        repository.Store
	courier      courier.Courier
	blobs        BlobStore
	conditions   ConditionSet
	loc          *time.Location
	now          func() time.Time
	maxPhotoSize int64
	listeners    []Listener
	validate     *validator.Validate
}

func NewService(store repository.Store, c courier.Courier, opts Options, listeners ...Listener) *Service {
	s := &Service{
		store:        store,
		courier:      c,
		blobs:        opts.Blobs,
		conditions:   opts.Conditions,
		loc:          opts.Location,
		now:          opts.Now,
		maxPhotoSize: opts.MaxPhotoSize,
		listeners:    listeners,
		validate:     newValidator(),
	}
	if s.conditions == "" {
		s.conditions = ConditionSetGrade
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxPhotoSize <= 0 {
		s.maxPhotoSize = 5 << 20
	}
	return s
}

// AddListener doit être appelé avant de servir des requêtes
func (s *Service) AddListener(l Listener) {
	s.listeners = append(s.listeners, l)
}

func (s *Service) Conditions() ConditionSet { return s.conditions }

// Today : date du jour dans le fuseau du marchand
func (s *Service) Today() time.Time {
	return s.now().In(s.loc)
}

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	return v
}

// checkStruct convertit les erreurs du validator en map champ → message
func (s *Service) checkStruct(op string, v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return integrationError(op, "validation impossible", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return validationError(op, fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "champ requis"
	case "email":
		return "email invalide"
	case "min":
		return "trop court (minimum " + fe.Param() + ")"
	case "max":
		return "trop long (maximum " + fe.Param() + ")"
	case "url":
		return "URL invalide"
	case "slug":
		return "lettres minuscules, chiffres et tirets uniquement"
	case "oneof":
		return "valeur invalide (" + fe.Param() + ")"
	}
	return "valeur invalide"
}

// storeError traduit une erreur de dépôt en erreur typée
func storeError(op, what string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFoundError(op, what+" introuvable")
	case errors.Is(err, repository.ErrConflict):
		return preconditionError(op, "la demande a changé entre-temps, rechargez la page")
	}
	return integrationError(op, "erreur base de données", err)
}

func (s *Service) emit(ctx context.Context, ch Change) {
	if len(s.listeners) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, l := range s.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zap.S().Errorf("❌ Listener en panique (%s %s): %v", ch.Kind, ch.Return.ID, r)
				}
			}()
			l.ReturnChanged(ctx, ch)
		}()
	}
}
