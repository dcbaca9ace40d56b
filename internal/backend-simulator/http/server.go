// Package http expõe o estado do simulador com as mesmas rotas e corpos do backend BETREF.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/betref-client/internal/backend-simulator/state"
	"github.com/radieske/betref-client/internal/shared/logger"
	"github.com/radieske/betref-client/internal/shared/validation"
	"github.com/radieske/betref-client/pkg/contracts/betref"
)

const maxUpload = 10 << 20

type ctxKey struct{}

// Server expõe o backend simulado em HTTP
type Server struct {
	log      *zap.Logger
	state    *state.State
	tokens   *Tokens
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewServer instancia o servidor; reg nil desliga as métricas
func NewServer(log *zap.Logger, st *state.State, tokens *Tokens, reg prometheus.Registerer) *Server {
	log = logger.OrNop(log)
	s := &Server{log: log, state: st, tokens: tokens}
	if reg != nil {
		s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simulator_http_requests_total",
			Help: "requisições atendidas pelo simulador por rota e status",
		}, []string{"route", "status"})
		s.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "simulator_http_request_duration_seconds",
			Help:    "latência das rotas do simulador",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"})
		reg.MustRegister(s.requests, s.latency)
	}
	return s
}

// Router retorna o chi.Router com todas as rotas públicas, de conta e de admin
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Post("/login", s.login)
	r.Post("/register", s.register)
	r.Get("/uploads/{name}", s.upload)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/me", s.me)
		r.Post("/verificate/verificate", s.submitVerification)
		r.Get("/referidos", s.referrals)

		r.Get("/transacciones/mis-depositos", s.myDeposits)
		r.Post("/transacciones/deposito", s.submitDeposit)
		r.Get("/transacciones/mis-retiros", s.myWithdrawals)
		r.Post("/transacciones/retiro", s.submitWithdrawal)

		r.Get("/vip/vip/next_draw", s.nextDraw)
		r.Get("/vip/vip/results", s.drawResults)
		r.Post("/vip/vip/participar", s.joinDraw)

		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)

			r.Get("/admin/admin/usuarios", s.users)
			r.Get("/admin/admin/verificaciones", s.verifications)
			r.Post("/admin/admin/verificar/{id}", s.decide(s.state.ApproveVerification))
			r.Post("/admin/admin/rechazar/{id}", s.decide(s.state.RejectVerification))

			r.Get("/transacciones/admin/depositos/pendientes", s.pendingDeposits)
			r.Post("/transacciones/admin/depositos/{id}/aprobar", s.decide(s.state.ApproveDeposit))
			r.Post("/transacciones/admin/depositos/{id}/rechazar", s.decide(s.state.RejectDeposit))

			r.Get("/transacciones/admin/retiros/pendientes", s.pendingWithdrawals)
			r.Post("/transacciones/admin/retiros/{id}/aprobar", s.decide(s.state.ApproveWithdrawal))
			r.Post("/transacciones/admin/retiros/{id}/rechazar", s.decide(s.state.RejectWithdrawal))
		})
	})
	return r
}

// ---- middlewares ----

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		if s.requests != nil {
			s.requests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
			s.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", ww.Status()),
			zap.String("requestId", middleware.GetReqID(r.Context())))
	})
}

// authenticate resolve o bearer token na conta; qualquer falha vira 401
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "No autenticado")
			return
		}
		id, err := s.tokens.Parse(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Token inválido o expirado")
			return
		}
		acc, err := s.state.Account(id)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Token inválido o expirado")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, acc)))
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !current(r).IsAdmin {
			writeError(w, http.StatusForbidden, "Acceso restringido a administradores")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func current(r *http.Request) betref.Account {
	acc, _ := r.Context().Value(ctxKey{}).(betref.Account)
	return acc
}

// ---- sessão ----

// login aceita JSON ou o form OAuth2 (username/password)
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req betref.LoginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	acc, err := s.state.Authenticate(req.Username, req.Password)
	if err != nil {
		s.fail(w, err)
		return
	}
	tok, err := s.tokens.Issue(acc.ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, betref.LoginResponse{AccessToken: tok, TokenType: "bearer", Account: acc})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req betref.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	if verr := validation.Struct(req); verr.OrNil() != nil {
		writeError(w, http.StatusUnprocessableEntity, verr.UserMessage())
		return
	}
	acc, err := s.state.Register(req)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.log.Info("account registered", zap.Int64("accountId", acc.ID), zap.String("username", acc.Username))
	writeJSON(w, http.StatusCreated, acc)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, current(r))
}

func (s *Server) referrals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Referrals(current(r).ID))
}

// ---- uploads ----

// saveUpload lê o campo multipart e guarda o arquivo; devolve "" quando o campo não veio
func (s *Server) saveUpload(r *http.Request, field string, accept func(*mimetype.MIME) bool) (string, error) {
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", state.ErrInvalidPayload
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	mt := mimetype.Detect(data)
	if !accept(mt) {
		return "", errUnsupportedFile
	}
	name := uuid.NewString() + mt.Extension()
	s.state.StoreFile(name, data)
	return "/uploads/" + name, nil
}

var errUnsupportedFile = errors.New("unsupported file type")

func isImage(mt *mimetype.MIME) bool { return strings.HasPrefix(mt.String(), "image/") }

func isDocument(mt *mimetype.MIME) bool { return isImage(mt) || mt.Is("application/pdf") }

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	data, ok := s.state.File(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "Archivo no encontrado")
		return
	}
	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ---- verificação ----

func (s *Server) submitVerification(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "Formulario inválido")
		return
	}
	url, err := s.saveUpload(r, "archivo", isDocument)
	if err != nil {
		s.fail(w, err)
		return
	}
	if url == "" {
		writeError(w, http.StatusBadRequest, "Debes adjuntar un documento")
		return
	}
	v, err := s.state.SubmitVerification(current(r).ID, url)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ---- depósitos e retiros ----

func (s *Server) myDeposits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Deposits(current(r).ID))
}

func (s *Server) submitDeposit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "Formulario inválido")
		return
	}
	amount, err := decimal.NewFromString(r.FormValue("monto"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Monto inválido")
		return
	}
	proof, err := s.saveUpload(r, "comprobante", isImage)
	if err != nil {
		s.fail(w, err)
		return
	}
	d, err := s.state.SubmitDeposit(current(r).ID, state.DepositInput{
		Amount:    amount,
		Method:    r.FormValue("metodo_pago"),
		Reference: r.FormValue("referencia"),
		ProofURL:  proof,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) myWithdrawals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Withdrawals(current(r).ID))
}

func (s *Server) submitWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req betref.WithdrawalSubmit
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	wd, err := s.state.SubmitWithdrawal(current(r).ID, req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wd)
}

// ---- sorteio VIP ----

func (s *Server) nextDraw(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, betref.NextDraw{NextDraw: s.state.NextDraw()})
}

func (s *Server) drawResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Results())
}

func (s *Server) joinDraw(w http.ResponseWriter, r *http.Request) {
	out, err := s.state.Join(current(r).ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- admin ----

func (s *Server) users(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Accounts())
}

func (s *Server) verifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Verifications())
}

func (s *Server) pendingDeposits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.PendingDeposits())
}

func (s *Server) pendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.PendingWithdrawals())
}

// decide adapta uma transição do estado (aprobar/rechazar) para handler com {id} na rota
func (s *Server) decide(fn func(id int64) (betref.DecisionResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "Identificador inválido")
			return
		}
		resp, err := fn(id)
		if err != nil {
			s.fail(w, err)
			return
		}
		s.log.Info("admin decision",
			zap.String("route", chi.RouteContext(r.Context()).RoutePattern()),
			zap.Int64("id", id),
			zap.String("status", string(resp.Status)),
			zap.Int64("operator", current(r).ID))
		writeJSON(w, http.StatusOK, resp)
	}
}

// ---- respostas ----

// fail traduz os erros do estado para status e detalhe em espanhol
func (s *Server) fail(w http.ResponseWriter, err error) {
	status, detail := http.StatusBadRequest, ""
	switch {
	case errors.Is(err, state.ErrNotFound):
		status, detail = http.StatusNotFound, "Recurso no encontrado"
	case errors.Is(err, state.ErrBadCredentials):
		status, detail = http.StatusUnauthorized, "Credenciales inválidas"
	case errors.Is(err, state.ErrNotVerified):
		status, detail = http.StatusForbidden, "Solo cuentas verificadas pueden participar"
	case errors.Is(err, state.ErrInsufficientFunds):
		detail = "Saldo insuficiente"
	case errors.Is(err, state.ErrAlreadyProcessed):
		detail = "Solicitud ya procesada"
	case errors.Is(err, state.ErrDuplicate):
		detail = "El usuario o email ya está registrado"
	case errors.Is(err, state.ErrInvalidReferrer):
		detail = "El referido no existe"
	case errors.Is(err, state.ErrAlreadyVerified):
		detail = "La cuenta ya está verificada"
	case errors.Is(err, state.ErrOutOfRange):
		detail = "Monto fuera del rango permitido"
	case errors.Is(err, state.ErrAlreadyJoined):
		detail = "Ya estás inscrito en el próximo sorteo"
	case errors.Is(err, state.ErrInvalidPayload):
		detail = "Datos inválidos"
	case errors.Is(err, errUnsupportedFile):
		detail = "Formato de archivo no permitido"
	default:
		s.log.Error("simulator handler", zap.Error(err))
		status, detail = http.StatusInternalServerError, "Error interno"
	}
	writeError(w, status, detail)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, betref.ErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
