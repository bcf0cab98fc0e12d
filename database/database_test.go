package database

import "testing"

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(RegistrableComponentConfig{Type: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected an error for an unknown driver")
	}
}

func TestRegisterNilDriverPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic when registering a nil driver")
		}
	}()
	Register("nil-driver", nil)
}

func TestRegisterDuplicateDriverPanics(t *testing.T) {
	driver := func(RegistrableComponentConfig) (Datastore, error) { return nil, nil }
	Register("duplicate-driver", driver)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic when registering a duplicate driver")
		}
	}()
	Register("duplicate-driver", driver)
}
