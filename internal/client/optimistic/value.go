// Package optimistic marca valores locais como provisórios até a próxima leitura do servidor.
package optimistic

type Origin uint8

const (
	Authoritative Origin = iota
	Optimistic
)

func (o Origin) String() string {
	if o == Optimistic {
		return "optimistic"
	}
	return "authoritative"
}

// Value carrega um campo junto com a origem dele
type Value[T any] struct {
	V      T
	Origin Origin
}

func Server[T any](v T) Value[T] { return Value[T]{V: v, Origin: Authoritative} }

func Guess[T any](v T) Value[T] { return Value[T]{V: v, Origin: Optimistic} }

// Final indica que o valor veio do servidor
func (v Value[T]) Final() bool { return v.Origin == Authoritative }

// Reconcile sempre devolve o snapshot do servidor; o palpite local é descartado
func Reconcile[T any](_ Value[T], server T) Value[T] { return Server(server) }
