package cpcvm

import "testing"

func dataVM() *VM {
	vm, _, _, _ := newTestVM()
	for _, l := range []string{"10", "20", "30"} {
		vm.Labels().Add(l)
	}
	vm.Data(10, "1", "&FF", "abc")
	vm.Data(20, "x")
	vm.Goto("30")
	return vm
}

func TestReadSequence(t *testing.T) {
	vm := dataVM()
	tests := []struct {
		name string
		want BASICValue
	}{
		{"a", Num(1)},
		{"b%", Num(255)},
		{"c$", Str("abc")},
		{"d$", Str("x")},
	}
	for _, tt := range tests {
		got, err := vm.Read(tt.name)
		if err != nil {
			t.Fatalf("READ %s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("READ %s = %+v, want %+v", tt.name, got, tt.want)
		}
	}

	if _, err := vm.Read("e"); err == nil {
		t.Fatal("READ past the end accepted")
	}
	if faultCode(vm) != FaultDataExhausted {
		t.Errorf("fault = %d, want %d", faultCode(vm), FaultDataExhausted)
	}
}

func TestRestore(t *testing.T) {
	vm := dataVM()
	_, _ = vm.Read("a")

	if err := vm.Restore(20); err != nil {
		t.Fatal(err)
	}
	if v, _ := vm.Read("s$"); v.StrValue != "x" {
		t.Errorf("READ after RESTORE 20 = %+v", v)
	}

	if err := vm.Restore(); err != nil {
		t.Fatal(err)
	}
	if v, _ := vm.Read("a"); v.NumValue != 1 {
		t.Errorf("READ after RESTORE = %+v", v)
	}

	// a line without DATA positions past the end
	_ = vm.Restore(30)
	if vm.DataCursor().Index() != vm.DataCursor().Len() {
		t.Errorf("index = %d, want %d", vm.DataCursor().Index(), vm.DataCursor().Len())
	}

	if err := vm.Restore(15); err == nil {
		t.Fatal("RESTORE to a missing line accepted")
	}
	if faultCode(vm) != FaultLineMissing {
		t.Errorf("fault = %d, want %d", faultCode(vm), FaultLineMissing)
	}
}

func TestReadSyntaxErrorReportsDataLine(t *testing.T) {
	vm, _, _, _ := newTestVM()
	vm.Data(10, "abc")
	vm.Goto("50")

	if _, err := vm.Read("n"); err == nil {
		t.Fatal("non-numeric DATA read into a number")
	}
	if faultCode(vm) != FaultSyntax {
		t.Errorf("fault = %d, want %d", faultCode(vm), FaultSyntax)
	}
	if vm.Erl() != 10 {
		t.Errorf("ERL = %d, want 10", vm.Erl())
	}
}

func TestRunRewindsData(t *testing.T) {
	vm := dataVM()
	_, _ = vm.Read("a")
	_, _ = vm.Read("b")
	vm.Run("10")
	if vm.DataCursor().Index() != 0 {
		t.Errorf("index after RUN = %d", vm.DataCursor().Index())
	}
	if vm.DataCursor().Len() != 4 {
		t.Errorf("DATA lost on RUN: %d items", vm.DataCursor().Len())
	}
}
