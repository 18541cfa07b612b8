package cpcvm

import "testing"

func TestAssignCoercion(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  BASICValue
		code  int
	}{
		{"a%", 2.5, Num(3), -1},
		{"a%", -2.5, Num(-3), -1},
		{"a%", 40000, BASICValue{}, FaultOverflow},
		{"a", 1.25, Num(1.25), -1},
		{"s$", "hi", Str("hi"), -1},
		{"s$", 5, BASICValue{}, FaultTypeMismatch},
		{"a", "x", BASICValue{}, FaultTypeMismatch},
		{"a%", Str("1"), BASICValue{}, FaultTypeMismatch},
	}

	for _, tt := range tests {
		vm, _, _, _ := newTestVM()
		err := vm.Let(tt.name, tt.value)
		if tt.code >= 0 {
			if err == nil {
				t.Errorf("%s = %v accepted", tt.name, tt.value)
			} else if faultCode(vm) != tt.code {
				t.Errorf("%s = %v: fault %d, want %d", tt.name, tt.value, faultCode(vm), tt.code)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s = %v: %v", tt.name, tt.value, err)
			continue
		}
		if got := vm.Get(tt.name); got != tt.want {
			t.Errorf("%s = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestDefTypes(t *testing.T) {
	vm, _, _, _ := newTestVM()
	if err := vm.DefInt("i", "k"); err != nil {
		t.Fatal(err)
	}
	_ = vm.DefStr("s", "")

	tests := []struct {
		name string
		want VarType
	}{
		{"j", TypeInteger},
		{"jj", TypeInteger},
		{"l", TypeReal},
		{"s1", TypeString},
		{"j!", TypeReal},
		{"s%", TypeInteger},
	}
	for _, tt := range tests {
		if got := vm.VarTypeOf(tt.name); got != tt.want {
			t.Errorf("VarTypeOf(%s) = %c, want %c", tt.name, got, tt.want)
		}
	}

	_ = vm.Let("j", 1.6)
	if v := vm.Get("j"); v.NumValue != 2 {
		t.Errorf("j = %v, want 2", v.NumValue)
	}
}

func TestScalarsKeepTypesApart(t *testing.T) {
	vm, _, _, _ := newTestVM()
	_ = vm.Let("a", 1)
	_ = vm.Let("a$", "x")
	_ = vm.Let("a%", 3)
	if vm.Get("a").NumValue != 1 || vm.Get("a$").StrValue != "x" || vm.Get("a%").NumValue != 3 {
		t.Errorf("a=%v a$=%v a%%=%v", vm.Get("a"), vm.Get("a$"), vm.Get("a%"))
	}
	if vm.Get("unset$").StrValue != "" || vm.Get("unset").NumValue != 0 {
		t.Error("unset variables not zero")
	}
}

func TestArrays(t *testing.T) {
	vm, _, _, _ := newTestVM()
	if err := vm.Dim("x", 5); err != nil {
		t.Fatal(err)
	}
	if err := vm.LetIndex("x", 7, 5); err != nil {
		t.Fatal(err)
	}
	if v, _ := vm.Index("x", 5); v.NumValue != 7 {
		t.Errorf("x(5) = %v", v.NumValue)
	}

	if _, err := vm.Index("x", 6); err == nil {
		t.Error("x(6) accepted")
	} else if faultCode(vm) != FaultSubscriptRange {
		t.Errorf("fault = %d, want %d", faultCode(vm), FaultSubscriptRange)
	}

	vm.ClearStop()
	if err := vm.Dim("x", 3); err == nil {
		t.Error("second DIM accepted")
	} else if faultCode(vm) != FaultArrayDimensioned {
		t.Errorf("fault = %d, want %d", faultCode(vm), FaultArrayDimensioned)
	}

	vm.ClearStop()
	if err := vm.Erase("x"); err != nil {
		t.Fatal(err)
	}
	if err := vm.Dim("x", 3); err != nil {
		t.Errorf("DIM after ERASE: %v", err)
	}
}

func TestImplicitArrayDimension(t *testing.T) {
	vm, _, _, _ := newTestVM()
	if err := vm.LetIndex("n$", "z", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := vm.Index("n$", 11); err == nil {
		t.Error("implicit array larger than 10")
	}
	v, _ := vm.Index("m$", 0)
	if v.IsNumeric || v.StrValue != "" {
		t.Errorf("implicit string array element = %+v", v)
	}
}

func TestClearKeepsProgram(t *testing.T) {
	vm, _, _, _ := newTestVM()
	vm.Labels().Add("10")
	_ = vm.DefInt("a", "z")
	_ = vm.Let("b", 5)
	vm.Clear()
	if vm.Get("b").NumValue != 0 {
		t.Error("CLEAR kept variables")
	}
	if vm.VarTypeOf("b") != TypeReal {
		t.Error("CLEAR kept DEFINT")
	}
	if vm.Labels().Len() != 1 {
		t.Error("CLEAR dropped program lines")
	}
}
