package jsonable_test

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dhoelle/jsonable"
)

type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
}

type Person struct {
	Name     string   `json:"name"`
	Nickname *string  `json:"nickname" alias:"nick"`
	Age      int      `json:"age"`
	Address  *Address `json:"address"`
	Tags     []string `json:"tags"`
	Ignored  string   `json:"-"`
	secret   string
}

func ptr[T any](v T) *T { return &v }

func mustNew(t *testing.T, cfg *jsonable.Config) *jsonable.Encoder {
	t.Helper()
	enc, err := jsonable.New(cfg)
	require.NoError(t, err)
	return enc
}

func TestEncodeScalarsPassThrough(t *testing.T) {
	for _, v := range []any{
		nil,
		true,
		false,
		0,
		-3,
		int8(4),
		int64(math.MinInt64),
		uint64(math.MaxUint64),
		1.5,
		float32(2.5),
		math.Inf(1),
		"",
		"hi",
	} {
		got, err := jsonable.Encode(v)
		require.NoError(t, err)
		require.Equal(t, v, got, "encoding %#v", v)
	}

	got, err := jsonable.Encode(math.NaN())
	require.NoError(t, err)
	require.True(t, math.IsNaN(got.(float64)))
}

type Color string

type Level int8

func TestEncodeNamedScalars(t *testing.T) {
	got, err := jsonable.Encode(Color("red"))
	require.NoError(t, err)
	require.Equal(t, "red", got)

	got, err = jsonable.Encode(Level(3))
	require.NoError(t, err)
	require.Equal(t, int8(3), got)
}

func TestEncodeNilValues(t *testing.T) {
	var (
		p  *Person
		m  map[string]int
		s  []int
		e  error
		fn func()
	)
	for _, v := range []any{p, m, s, e, fn} {
		got, err := jsonable.Encode(v)
		require.NoError(t, err)
		require.Nil(t, got)
	}
}

func TestEncodeRecord(t *testing.T) {
	p := Person{
		Name:    "Ada",
		Age:     36,
		Address: &Address{Street: "1 Analytical Way", City: "London"},
		Tags:    []string{"math", "engines"},
		Ignored: "ignored",
		secret:  "hidden",
	}

	got, err := jsonable.Encode(p)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"name":     "Ada",
		"nickname": nil,
		"age":      36,
		"address":  map[string]any{"street": "1 Analytical Way", "city": "London"},
		"tags":     []any{"math", "engines"},
	}, got)

	got, err = jsonable.Encode(&p, jsonable.ExcludeNone(true))
	require.NoError(t, err)
	require.NotContains(t, got, "nickname")
}

type pair struct {
	A any `json:"a"`
	B any `json:"b"`
}

func TestEncodeExcludeNone(t *testing.T) {
	r := pair{A: 1, B: nil}

	got, err := jsonable.Encode(r)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": 1, "b": nil}, got)

	got, err = jsonable.Encode(r, jsonable.ExcludeNone(true))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": 1}, got)

	enc := mustNew(t, &jsonable.Config{ExcludeNone: true})
	got, err = enc.Encode(r)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": 1}, got)

	got, err = enc.Encode(r, jsonable.ExcludeNone(false))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": 1, "b": nil}, got, "call-level option overrides the instance")
}

func TestEncodeExcludeOmitsNonNilFields(t *testing.T) {
	got, err := jsonable.Encode(pair{A: "x", B: 2}, jsonable.Exclude("a"), jsonable.ExcludeNone(false))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"b": 2}, got)

	enc := mustNew(t, &jsonable.Config{Exclude: []string{"b"}})
	got, err = enc.Encode(pair{A: "x", B: 2})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": "x"}, got)

	got, err = enc.Encode(pair{A: "x", B: 2}, jsonable.Exclude("a"))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"b": 2}, got, "call-level exclude replaces the instance's")
}

func TestEncodeExcludeAppliesToRootOnly(t *testing.T) {
	v := map[string]any{
		"a":     1,
		"inner": map[string]any{"a": 2},
	}
	got, err := jsonable.Encode(v, jsonable.Exclude("a"))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"inner": map[string]any{"a": 2}}, got)
}

func TestEncodeInclude(t *testing.T) {
	p := Person{Name: "Ada", Age: 36, Address: &Address{City: "London"}}
	got, err := jsonable.Encode(p, jsonable.Include("name", "address"))
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"name":    "Ada",
		"address": map[string]any{"street": "", "city": "London"},
	}, got)
}

func TestEncodeByAlias(t *testing.T) {
	p := Person{Name: "Ada", Nickname: ptr("Countess")}

	got, err := jsonable.Encode(p, jsonable.ByAlias(true), jsonable.Include("name", "nickname"))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "Ada", "nick": "Countess"}, got)

	got, err = jsonable.Encode(p, jsonable.Exclude("nick"))
	require.NoError(t, err)
	require.NotContains(t, got, "nickname", "exclusion matches aliases too")
}

type Base struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Item struct {
	Base
	Name string `json:"name"`
	Meta Base   `json:"meta"`
}

type withPtrBase struct {
	*Base
	X int
}

func TestEncodeEmbeddedStructs(t *testing.T) {
	got, err := jsonable.Encode(Item{Base: Base{ID: 1, Name: "base"}, Name: "item", Meta: Base{ID: 2, Name: "m"}})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"id":   1,
		"name": "item",
		"meta": map[string]any{"id": 2, "name": "m"},
	}, got)

	got, err = jsonable.Encode(withPtrBase{X: 1})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"X": 1}, got)

	got, err = jsonable.Encode(withPtrBase{Base: &Base{ID: 7}, X: 1})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": 7, "name": "", "X": 1}, got)
}

func TestEncodeSequence(t *testing.T) {
	got, err := jsonable.Encode([]any{1, "two", []int{3}, [2]bool{true, false}, &Address{City: "Paris"}})
	require.NoError(t, err)
	require.Equal(t, []any{
		1,
		"two",
		[]any{3},
		[]any{true, false},
		map[string]any{"street": "", "city": "Paris"},
	}, got)
}

type roster struct {
	Games map[string]struct{} `json:"games"`
}

func TestEncodeSets(t *testing.T) {
	in := map[string]struct{}{"a": {}, "b": {}}

	got, err := jsonable.Encode(in)
	require.NoError(t, err)
	require.IsType(t, []any{}, got)
	require.ElementsMatch(t, []any{"a", "b"}, got)

	enc := mustNew(t, &jsonable.Config{PreserveSet: true})
	got, err = enc.Encode(in)
	require.NoError(t, err)
	require.Equal(t, jsonable.NewSet("a", "b"), got)

	got, err = enc.Encode(roster{Games: in})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"games": jsonable.NewSet("b", "a")}, got)

	got, err = enc.Encode(jsonable.NewSet(1, 2, 3))
	require.NoError(t, err)
	require.Equal(t, jsonable.NewSet(1, 2, 3), got)

	got, err = jsonable.Encode(jsonable.NewSet(1, 2, 3))
	require.NoError(t, err)
	require.ElementsMatch(t, []any{1, 2, 3}, got)
}

func TestEncodeSetRejectsUnhashableMembers(t *testing.T) {
	enc := mustNew(t, &jsonable.Config{PreserveSet: true})
	_, err := enc.Encode(map[Base]struct{}{{ID: 1}: {}})

	var keyErr *jsonable.UnencodableKeyError
	require.ErrorAs(t, err, &keyErr)
	require.Equal(t, "jsonable_test.Base", keyErr.KeyType)
}

func TestEncodeTime(t *testing.T) {
	when := time.Date(2023, 6, 26, 12, 30, 0, 0, time.UTC)

	got, err := jsonable.Encode(map[string]any{"when": when})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"when": "2023-06-26T12:30:00.000Z"}, got)

	parsed, err := time.Parse(time.RFC3339Nano, got.(map[string]any)["when"].(string))
	require.NoError(t, err)
	require.True(t, parsed.Equal(when))

	got, err = jsonable.Encode(when.In(time.FixedZone("CEST", 2*60*60)))
	require.NoError(t, err)
	require.Equal(t, "2023-06-26T12:30:00.000Z", got)

	enc := mustNew(t, &jsonable.Config{
		TimeLayout:   time.RFC3339,
		TimeLocation: time.FixedZone("CEST", 2*60*60),
	})
	got, err = enc.Encode(when)
	require.NoError(t, err)
	require.Equal(t, "2023-06-26T14:30:00+02:00", got)

	got, err = jsonable.Encode(1500 * time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 1.5, got)
}

func TestEncodeTextual(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	for _, tt := range []struct {
		in   any
		want any
	}{
		{id, "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{net.ParseIP("127.0.0.1"), "127.0.0.1"},
		{errors.New("boom"), "boom"},
		{[]byte("hi"), "hi"},
		{[]byte{0xff, 0xfe}, "//4="},
	} {
		got, err := jsonable.Encode(tt.in)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestEncodeMappingKeys(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	for _, tt := range []struct {
		in   any
		want any
	}{
		{map[int]string{1: "a"}, map[string]any{"1": "a"}},
		{map[bool]int{true: 1}, map[string]any{"true": 1}},
		{map[float64]int{1.5: 1}, map[string]any{"1.5": 1}},
		{map[Color]int{"red": 1}, map[string]any{"red": 1}},
		{map[uuid.UUID]int{id: 1}, map[string]any{"6ba7b810-9dad-11d1-80b4-00c04fd430c8": 1}},
		{map[any]int{nil: 1}, map[string]any{"null": 1}},
	} {
		got, err := jsonable.Encode(tt.in)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

type upper string

func (u upper) MarshalText() ([]byte, error) { return []byte("U:" + string(u)), nil }

func TestEncodeTextualMappingKeys(t *testing.T) {
	got, err := jsonable.Encode(map[upper]upper{"k": "v"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"U:k": "U:v"}, got)
}

type balance struct {
	Amount big.Int  `json:"amount"`
	Limit  *big.Int `json:"limit"`
}

func TestEncodePointerReceiverTextMarshalers(t *testing.T) {
	enc := mustNew(t, &jsonable.Config{Strict: true})
	b := balance{Amount: *big.NewInt(42), Limit: big.NewInt(7)}
	want := map[string]any{"amount": "42", "limit": "7"}

	for _, in := range []any{b, &b} {
		got, err := enc.Encode(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	got, err := enc.Encode(map[string]big.Int{"x": *big.NewInt(5)})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"x": "5"}, got)

	got, err = enc.Encode([]big.Int{*big.NewInt(1)})
	require.NoError(t, err)
	require.Equal(t, []any{"1"}, got)
	require.Equal(t, int64(42), b.Amount.Int64())
}

func TestEncodeUnencodableKey(t *testing.T) {
	_, err := jsonable.Encode(map[string]any{
		"outer": map[[2]int]string{{1, 2}: "x"},
	})

	var keyErr *jsonable.UnencodableKeyError
	require.ErrorAs(t, err, &keyErr)
	require.Equal(t, []string{"outer"}, keyErr.Path)
	require.Equal(t, "[2]int", keyErr.KeyType)
	require.Equal(t, "[]interface {}", keyErr.Got)
}

type Animal struct {
	Name string
}

type Dog struct {
	Animal
	Breed string
}

type Puppy struct {
	Dog
	Age int
}

var (
	animalConverter = jsonable.ConvertSimple(func(a Animal) any { return "animal:" + a.Name })
	dogConverter    = jsonable.ConvertSimple(func(d Dog) any { return "dog:" + d.Name })
)

func TestEncodeConverterPrecedence(t *testing.T) {
	rex := Dog{Animal: Animal{Name: "rex"}, Breed: "lab"}

	for _, tt := range []struct {
		name  string
		convs []jsonable.Converter
		in    any
		want  any
	}{
		{"exact beats ancestor", []jsonable.Converter{animalConverter, dogConverter}, rex, "dog:rex"},
		{"exact beats ancestor regardless of order", []jsonable.Converter{dogConverter, animalConverter}, rex, "dog:rex"},
		{"embedded ancestor", []jsonable.Converter{animalConverter}, rex, "animal:rex"},
		{"pointed-to type", []jsonable.Converter{dogConverter}, &rex, "dog:rex"},
		{"nearest ancestor", []jsonable.Converter{animalConverter, dogConverter}, Puppy{Dog: rex}, "dog:rex"},
		{"no converter", nil, Animal{Name: "rex"}, map[string]any{"Name": "rex"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			enc := mustNew(t, &jsonable.Config{Converters: tt.convs})
			got, err := enc.Encode(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

type both struct{}

func (both) String() string { return "stringer" }
func (both) Error() string  { return "error" }

func TestEncodeInterfaceConverterTiesGoToFirstRegistered(t *testing.T) {
	stringer := jsonable.ConvertSimple(func(s fmt.Stringer) any { return "via stringer" })
	errConv := jsonable.ConvertSimple(func(e error) any { return "via error" })

	enc := mustNew(t, &jsonable.Config{Converters: []jsonable.Converter{stringer, errConv}})
	got, err := enc.Encode(both{})
	require.NoError(t, err)
	require.Equal(t, "via stringer", got)

	enc = mustNew(t, &jsonable.Config{Converters: []jsonable.Converter{errConv, stringer}})
	got, err = enc.Encode(both{})
	require.NoError(t, err)
	require.Equal(t, "via error", got)
}

func TestEncodeConverterOutputIsEncoded(t *testing.T) {
	enc := mustNew(t, &jsonable.Config{Converters: []jsonable.Converter{
		jsonable.ConvertSimple(func(d Dog) any {
			return map[string]any{"name": d.Name, "seen": time.Date(2020, 1, 1, 13, 30, 0, 0, time.UTC)}
		}),
	}})

	got, err := enc.Encode([]Dog{{Animal: Animal{Name: "rex"}}})
	require.NoError(t, err)
	require.Equal(t, []any{
		map[string]any{"name": "rex", "seen": "2020-01-01T13:30:00.000Z"},
	}, got)
}

func TestEncodeConverterOverridesBuiltins(t *testing.T) {
	got, err := jsonable.Encode("test", jsonable.Converters(
		jsonable.ConvertSimple(func(string) any { return "custom_encoder" }),
	))
	require.NoError(t, err)
	require.Equal(t, "custom_encoder", got)

	got, err = jsonable.Encode(time.Unix(0, 0), jsonable.Converters(
		jsonable.ConvertSimple(func(t time.Time) any { return t.Unix() }),
	))
	require.NoError(t, err)
	require.Equal(t, int64(0), got)
}

func TestEncodeCallConvertersTakePrecedence(t *testing.T) {
	enc := mustNew(t, &jsonable.Config{Converters: []jsonable.Converter{dogConverter}})
	got, err := enc.Encode(Dog{Animal: Animal{Name: "rex"}}, jsonable.Converters(
		jsonable.ConvertSimple(func(d Dog) any { return "call" }),
	))
	require.NoError(t, err)
	require.Equal(t, "call", got)

	got, err = enc.Encode(Dog{Animal: Animal{Name: "rex"}})
	require.NoError(t, err)
	require.Equal(t, "dog:rex", got, "call-level converters do not outlive the call")
}

var errBoom = errors.New("boom")

func TestEncodeConverterErrorsPropagateUnchanged(t *testing.T) {
	enc := mustNew(t, &jsonable.Config{Converters: []jsonable.Converter{
		jsonable.ConvertFunc(func(d Dog) (any, error) { return nil, errBoom }),
	}})
	_, err := enc.Encode(map[string]any{"pets": []any{Dog{}}})
	require.Equal(t, errBoom, err)
}

type ping int

type pong int

type loop struct{ N int }

type node struct {
	Next *node
}

func TestEncodeRecursionLimit(t *testing.T) {
	enc := mustNew(t, &jsonable.Config{
		MaxDepth: 10,
		Converters: []jsonable.Converter{
			jsonable.ConvertSimple(func(p ping) any { return pong(p) }),
			jsonable.ConvertSimple(func(p pong) any { return ping(p) }),
		},
	})
	_, err := enc.Encode(ping(1))

	var limitErr *jsonable.RecursionLimitError
	require.ErrorAs(t, err, &limitErr)
	require.Equal(t, 10, limitErr.Limit)

	n := &node{}
	n.Next = n
	_, err = jsonable.Encode(n)
	require.ErrorAs(t, err, &limitErr)
	require.Equal(t, jsonable.DefaultMaxDepth, limitErr.Limit)
}

func TestEncodeConverterReturningItsInputTypeAppliesOnce(t *testing.T) {
	calls := 0
	enc := mustNew(t, &jsonable.Config{Converters: []jsonable.Converter{
		jsonable.ConvertSimple(func(l loop) any {
			calls++
			return loop{N: l.N + 1}
		}),
	}})

	got, err := enc.Encode(loop{N: 1})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"N": 2}, got)
	require.Equal(t, 1, calls)
}

type lazy func() int

func (lazy) String() string { return "lazy" }

func TestEncodeFallback(t *testing.T) {
	got, err := jsonable.Encode(complex(1, 2))
	require.NoError(t, err)
	require.Equal(t, "(1+2i)", got)

	got, err = jsonable.Encode(lazy(func() int { return 1 }))
	require.NoError(t, err)
	require.Equal(t, "lazy", got)

	enc := mustNew(t, &jsonable.Config{Strict: true})
	_, err = enc.Encode(map[string]any{"z": complex(1, 2)})

	var typeErr *jsonable.UnencodableTypeError
	require.ErrorAs(t, err, &typeErr)
	require.Equal(t, "complex128", typeErr.Type)
	require.Equal(t, []string{"z"}, typeErr.Path)
}

func TestNewRejectsMalformedConverters(t *testing.T) {
	stringType := reflect.TypeFor[string]()

	for _, tt := range []struct {
		name string
		conv jsonable.Converter
	}{
		{"nil type", jsonable.Converter{Func: func(string) any { return nil }}},
		{"nil func", jsonable.ConverterOf(stringType, nil)},
		{"typed nil func", jsonable.ConvertFunc[string](nil)},
		{"not a func", jsonable.ConverterOf(stringType, "upper")},
		{"two arguments", jsonable.ConverterOf(stringType, func(a, b string) any { return a + b })},
		{"wrong argument type", jsonable.ConverterOf(stringType, func(i int) any { return i })},
		{"no results", jsonable.ConverterOf(stringType, func(string) {})},
		{"second result not error", jsonable.ConverterOf(stringType, func(s string) (any, int) { return s, 0 })},
	} {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := jsonable.New(&jsonable.Config{Converters: []jsonable.Converter{tt.conv}})
			require.Nil(t, enc)

			var cfgErr *jsonable.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
		})
	}

	_, err := jsonable.Encode("x", jsonable.Converters(jsonable.ConverterOf(stringType, 42)))
	var cfgErr *jsonable.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestConverterOf(t *testing.T) {
	enc := mustNew(t, &jsonable.Config{Converters: []jsonable.Converter{
		jsonable.ConverterOf(reflect.TypeFor[Color](), func(c Color) string { return "color:" + string(c) }),
		jsonable.ConverterOf(reflect.TypeFor[Level](), func(l Level) (any, error) {
			if l < 0 {
				return nil, errBoom
			}
			return int(l) * 10, nil
		}),
	}})

	got, err := enc.Encode([]any{Color("red"), Level(2)})
	require.NoError(t, err)
	require.Equal(t, []any{"color:red", 20}, got)

	_, err = enc.Encode(Level(-1))
	require.ErrorIs(t, err, errBoom)
}

type patch struct {
	fields []jsonable.Field
}

func (p patch) JSONFields() []jsonable.Field { return p.fields }

func TestEncodeRecordInterface(t *testing.T) {
	p := patch{fields: []jsonable.Field{
		{Name: "title", Alias: "Title", Value: "t"},
		{Name: "body", Value: nil, Unset: true},
		{Name: "count", Value: 0},
	}}

	got, err := jsonable.Encode(p)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"title": "t", "body": nil, "count": 0}, got)

	got, err = jsonable.Encode(p, jsonable.ExcludeUnset(true))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"title": "t", "count": 0}, got)

	got, err = jsonable.Encode(p, jsonable.ExcludeDefaults(true), jsonable.ByAlias(true))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"Title": "t"}, got)
}

type account struct {
	ID       int     `json:"id"`
	Password string  `json:"password"`
	Email    *string `json:"email"`
}

func (account) JSONRules() jsonable.Rules {
	return jsonable.Rules{
		Exclude:     []string{"password"},
		ExcludeNone: jsonable.On,
	}
}

type team struct {
	Owner account `json:"owner"`
	Note  *string `json:"note"`
}

func TestEncodeRecordDeclaredRules(t *testing.T) {
	a := account{ID: 1, Password: "hunter2"}

	got, err := jsonable.Encode(a)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": 1}, got)

	got, err = jsonable.Encode(a, jsonable.ExcludeNone(false))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": 1, "email": nil}, got, "call-level options win at the root")

	got, err = jsonable.Encode(team{Owner: a}, jsonable.ExcludeNone(false))
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"owner": map[string]any{"id": 1},
		"note":  nil,
	}, got, "nested records use their declared rules")
}

type cents int64

type ledger struct {
	Amount cents `json:"amount"`
	Lines  []struct {
		Amount cents `json:"amount"`
	} `json:"lines"`
}

func (ledger) JSONRules() jsonable.Rules {
	return jsonable.Rules{Converters: []jsonable.Converter{
		jsonable.ConvertSimple(func(c cents) any { return float64(c) / 100 }),
	}}
}

func TestEncodeRecordDeclaredConverters(t *testing.T) {
	l := ledger{Amount: 150}
	l.Lines = append(l.Lines, struct {
		Amount cents `json:"amount"`
	}{Amount: 25})

	got, err := jsonable.Encode(l)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"amount": 1.5,
		"lines":  []any{map[string]any{"amount": 0.25}},
	}, got)

	got, err = jsonable.Encode(cents(150))
	require.NoError(t, err)
	require.Equal(t, int64(150), got, "declared converters apply inside the record only")

	enc := mustNew(t, &jsonable.Config{Converters: []jsonable.Converter{
		jsonable.ConvertSimple(func(c cents) any { return "instance" }),
	}})
	got, err = enc.Encode(ledger{Amount: 150})
	require.NoError(t, err)
	require.Equal(t, 1.5, got.(map[string]any)["amount"], "declared converters override the instance's")

	got, err = enc.Encode(ledger{Amount: 150}, jsonable.Converters(
		jsonable.ConvertSimple(func(c cents) any { return "call" }),
	))
	require.NoError(t, err)
	require.Equal(t, "call", got.(map[string]any)["amount"], "call-level converters override declared ones")
}

func TestEncodeDoesNotModifyInput(t *testing.T) {
	in := map[string]any{
		"list": []any{1, map[string]any{"x": nil}},
		"set":  map[string]struct{}{"a": {}},
	}
	want := map[string]any{
		"list": []any{1, map[string]any{"x": nil}},
		"set":  map[string]struct{}{"a": {}},
	}

	_, err := jsonable.Encode(in, jsonable.ExcludeNone(true), jsonable.Exclude("list"))
	require.NoError(t, err)
	require.Equal(t, want, in)
}

func TestEncodeConcurrentUse(t *testing.T) {
	enc := mustNew(t, &jsonable.Config{Converters: []jsonable.Converter{animalConverter}})
	want := []any{"animal:rex", "animal:rex"}

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := enc.Encode([]any{Dog{Animal: Animal{Name: "rex"}}, &Puppy{Dog: Dog{Animal: Animal{Name: "rex"}}}})
			if err == nil && !reflect.DeepEqual(want, got) {
				err = fmt.Errorf("got %v, want %v", got, want)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}
