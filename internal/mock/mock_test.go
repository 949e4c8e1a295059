package mock

import (
	"errors"
	"reflect"
	"testing"
)

func TestMockImplementationOnceFIFO(t *testing.T) {
	s := New()
	s.MockImplementationOnce(func([]interface{}, interface{}) (interface{}, error) { return "first", nil })
	s.MockImplementationOnce(func([]interface{}, interface{}) (interface{}, error) { return "second", nil })
	s.MockImplementation(func([]interface{}, interface{}) (interface{}, error) { return "default", nil })

	for _, want := range []string{"first", "second", "default", "default"} {
		got, err := s.Call(nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	if len(s.Calls) != 4 {
		t.Fatalf("expected 4 recorded calls, got %d", len(s.Calls))
	}
	for i := 1; i < len(s.Calls); i++ {
		if s.Calls[i].Order <= s.Calls[i-1].Order {
			t.Fatalf("invocation order not monotonic: %v", s.Calls)
		}
	}
}

func TestMockClearVsReset(t *testing.T) {
	s := New()
	s.MockImplementationOnce(func([]interface{}, interface{}) (interface{}, error) { return 1, nil })
	s.MockClear()
	if len(s.onceQueue) != 1 {
		t.Fatal("MockClear must not drop the one-shot queue")
	}
	s.MockReset()
	if len(s.onceQueue) != 0 {
		t.Fatal("MockReset must drop the one-shot queue")
	}
}

func TestMockThrow(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	s.MockImplementation(func([]interface{}, interface{}) (interface{}, error) { return nil, boom })
	_, err := s.Call(nil, nil)
	if err != boom {
		t.Fatalf("expected boom, got %v", err)
	}
	if s.Calls[0].Kind != ResultThrow {
		t.Errorf("expected ResultThrow, got %v", s.Calls[0].Kind)
	}
}

func TestCallAsConstructorRecordsInstance(t *testing.T) {
	s := New()
	s.MockImplementation(func(args []interface{}, this interface{}) (interface{}, error) {
		return map[string]interface{}{"built": true}, nil
	})
	instance, err := s.CallAsConstructor(nil, struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Instances) != 1 || !reflect.DeepEqual(s.Instances[0], instance) {
		t.Fatalf("expected instance recorded, got %v", s.Instances)
	}
}

func TestBoundArgsAndThis(t *testing.T) {
	s := New()
	s.Bind([]interface{}{"bound"}, "boundThis")
	var gotArgs []interface{}
	var gotThis interface{}
	s.MockImplementation(func(args []interface{}, this interface{}) (interface{}, error) {
		gotArgs = args
		gotThis = this
		return nil, nil
	})
	if _, err := s.Call([]interface{}{"extra"}, "callThis"); err != nil {
		t.Fatal(err)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "bound" || gotArgs[1] != "extra" {
		t.Errorf("gotArgs = %v", gotArgs)
	}
	if gotThis != "boundThis" {
		t.Errorf("gotThis = %v, want boundThis", gotThis)
	}
}

func TestMockRestoreInvokesCallback(t *testing.T) {
	s := New()
	restored := false
	s.WithRestore(func() { restored = true })
	s.MockRestore()
	if !restored {
		t.Fatal("expected restore callback invoked")
	}
}
