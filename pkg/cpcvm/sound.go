package cpcvm

// EnvelopeSection is one (count, step, pause) triple of ENV or ENT.
type EnvelopeSection struct {
	Count int `json:"count"`
	Step  int `json:"step"`
	Pause int `json:"pause"`
}

// Sound implements SOUND state,period[,duration,volume,env,ent,noise]. When
// the channel queues cannot take the tone the VM stops with waitSound and the
// statement is retried after the driver has let the queues drain.
func (vm *VM) Sound(state, period any, rest ...any) error {
	st, err := vm.inRange(state, 1, 255, "SOUND")
	if err != nil {
		return err
	}
	p, err := vm.inRange(period, 0, 4095, "SOUND")
	if err != nil {
		return err
	}
	tone := Tone{State: st, Period: p}
	limits := []struct {
		min, max, def int
		dst           *int
	}{
		{minInt16, maxInt16, 20, &tone.Duration},
		{0, 15, 12, &tone.Volume},
		{0, 15, 0, &tone.VolEnv},
		{-15, 15, 0, &tone.ToneEnv},
		{0, 31, 0, &tone.Noise},
	}
	if len(rest) > len(limits) {
		return vm.Raise(FaultSyntax, "SOUND")
	}
	for i, l := range limits {
		v, err := optionalInRange(rest, i, l.min, l.max, l.def, "SOUND")
		if err != nil {
			return vm.raise(err)
		}
		*l.dst = v
	}
	if vm.sound == nil {
		return nil
	}
	if !vm.sound.TestCanQueue(st) {
		vm.requestStop(StopWaitSound, nil)
		return nil
	}
	vm.sound.Enqueue(tone)
	return nil
}

// Release implements RELEASE mask.
func (vm *VM) Release(mask any) error {
	m, err := vm.inRange(mask, 0, 7, "RELEASE")
	if err != nil {
		return err
	}
	if vm.sound != nil {
		vm.sound.Release(m)
	}
	return nil
}

func (vm *VM) envelope(n any, sections []any, where string, countMin, countMax, stepMin, stepMax int) (int, []EnvelopeSection, error) {
	num, err := vm.inRange(n, 1, 15, where)
	if err != nil {
		return 0, nil, err
	}
	if len(sections)%3 != 0 || len(sections) > 15 {
		return 0, nil, vm.Raise(FaultImproperArgument, where)
	}
	env := make([]EnvelopeSection, 0, len(sections)/3)
	for i := 0; i < len(sections); i += 3 {
		c, err := vm.inRange(sections[i], countMin, countMax, where)
		if err != nil {
			return 0, nil, err
		}
		s, err := vm.inRange(sections[i+1], stepMin, stepMax, where)
		if err != nil {
			return 0, nil, err
		}
		p, err := vm.inRange(sections[i+2], 0, 255, where)
		if err != nil {
			return 0, nil, err
		}
		env = append(env, EnvelopeSection{Count: c, Step: s, Pause: p})
	}
	return num, env, nil
}

// Env implements ENV n,(count,step,pause)...
func (vm *VM) Env(n any, sections ...any) error {
	num, env, err := vm.envelope(n, sections, "ENV", 0, 127, -128, 127)
	if err != nil {
		return err
	}
	vm.volEnvs[num] = env
	return nil
}

// Ent implements ENT n,(count,step,pause)...; a negative n repeats.
func (vm *VM) Ent(n any, sections ...any) error {
	raw, err := vm.inRange(n, -15, 15, "ENT")
	if err != nil {
		return err
	}
	num := raw
	if num < 0 {
		num = -num
	}
	num, env, err := vm.envelope(num, sections, "ENT", 0, 239, -128, 127)
	if err != nil {
		return err
	}
	vm.toneEnvs[num] = toneEnvelope{Repeat: raw < 0, Sections: env}
	return nil
}

type toneEnvelope struct {
	Repeat   bool              `json:"repeat"`
	Sections []EnvelopeSection `json:"sections"`
}

// VolumeEnvelope returns the sections of ENV n.
func (vm *VM) VolumeEnvelope(n int) []EnvelopeSection { return vm.volEnvs[n] }
