package cpcvm

func (vm *VM) coords(x, y any, where string) (int, int, error) {
	gx, err := vm.inRange(x, minInt16, maxInt16, where)
	if err != nil {
		return 0, 0, err
	}
	gy, err := vm.inRange(y, minInt16, maxInt16, where)
	if err != nil {
		return 0, 0, err
	}
	return gx, gy, nil
}

// pen and ink-mode arguments shared by PLOT, DRAW and MOVE
func (vm *VM) graphicsOptions(opts []any, where string) error {
	if len(opts) > 0 && opts[0] != nil {
		p, err := vm.inRange(opts[0], 0, 15, where)
		if err != nil {
			return err
		}
		vm.canvas.SetGPen(p)
	}
	if len(opts) > 1 && opts[1] != nil {
		m, err := vm.inRange(opts[1], 0, 3, where)
		if err != nil {
			return err
		}
		vm.canvas.SetGColMode(m)
	}
	return nil
}

type graphicsOp func(x, y int)

func (vm *VM) graphics(x, y any, relative bool, opts []any, where string, op func(GraphicsSurface) graphicsOp) error {
	gx, gy, err := vm.coords(x, y, where)
	if err != nil {
		return err
	}
	if vm.canvas == nil {
		return nil
	}
	if err := vm.graphicsOptions(opts, where); err != nil {
		return err
	}
	if relative {
		gx += vm.canvas.XPos()
		gy += vm.canvas.YPos()
	}
	op(vm.canvas)(gx, gy)
	return nil
}

func plotOp(g GraphicsSurface) graphicsOp { return g.Plot }
func drawOp(g GraphicsSurface) graphicsOp { return g.Draw }
func moveOp(g GraphicsSurface) graphicsOp { return g.Move }

// Plot implements PLOT x,y[,pen[,mode]].
func (vm *VM) Plot(x, y any, opts ...any) error { return vm.graphics(x, y, false, opts, "PLOT", plotOp) }

// PlotR implements PLOTR.
func (vm *VM) PlotR(x, y any, opts ...any) error { return vm.graphics(x, y, true, opts, "PLOTR", plotOp) }

// Draw implements DRAW x,y[,pen[,mode]].
func (vm *VM) Draw(x, y any, opts ...any) error { return vm.graphics(x, y, false, opts, "DRAW", drawOp) }

// DrawR implements DRAWR.
func (vm *VM) DrawR(x, y any, opts ...any) error { return vm.graphics(x, y, true, opts, "DRAWR", drawOp) }

// Move implements MOVE x,y[,pen[,mode]].
func (vm *VM) Move(x, y any, opts ...any) error { return vm.graphics(x, y, false, opts, "MOVE", moveOp) }

// MoveR implements MOVER.
func (vm *VM) MoveR(x, y any, opts ...any) error { return vm.graphics(x, y, true, opts, "MOVER", moveOp) }

// Origin implements ORIGIN x,y[,left,right,top,bottom].
func (vm *VM) Origin(x, y any, window ...any) error {
	gx, gy, err := vm.coords(x, y, "ORIGIN")
	if err != nil {
		return err
	}
	bounds := make([]int, 0, 4)
	if len(window) > 0 {
		if len(window) != 4 {
			return vm.Raise(FaultOperandMissing, "ORIGIN")
		}
		for _, v := range window {
			n, err := vm.inRange(v, minInt16, maxInt16, "ORIGIN")
			if err != nil {
				return err
			}
			bounds = append(bounds, n)
		}
	}
	if vm.canvas == nil {
		return nil
	}
	vm.canvas.SetOrigin(gx, gy)
	if len(bounds) == 4 {
		vm.canvas.SetGraphicsWindow(bounds[0], bounds[1], bounds[2], bounds[3])
	}
	return nil
}

// GraphicsPen implements GRAPHICS PEN pen[,background mode].
func (vm *VM) GraphicsPen(pen any, transparent ...any) error {
	p, err := vm.inRange(pen, 0, 15, "GRAPHICS PEN")
	if err != nil {
		return err
	}
	mode, err := optionalInRange(transparent, 0, 0, 1, 0, "GRAPHICS PEN")
	if err != nil {
		return vm.raise(err)
	}
	if vm.canvas != nil {
		vm.canvas.SetGPen(p)
		if len(transparent) > 0 {
			vm.canvas.SetMask(0xff, mode == 0)
		}
	}
	return nil
}

// GraphicsPaper implements GRAPHICS PAPER.
func (vm *VM) GraphicsPaper(paper any) error {
	p, err := vm.inRange(paper, 0, 15, "GRAPHICS PAPER")
	if err != nil {
		return err
	}
	if vm.canvas != nil {
		vm.canvas.SetGPaper(p)
	}
	return nil
}

// Mask implements MASK [mask][,first].
func (vm *VM) Mask(mask any, first ...any) error {
	m := 0xff
	if mask != nil {
		var err error
		if m, err = vm.inRange(mask, 0, 255, "MASK"); err != nil {
			return err
		}
	}
	f, err := optionalInRange(first, 0, 0, 1, 1, "MASK")
	if err != nil {
		return vm.raise(err)
	}
	if vm.canvas != nil {
		vm.canvas.SetMask(m, f == 1)
	}
	return nil
}

// Fill implements FILL pen.
func (vm *VM) Fill(pen any) error {
	p, err := vm.inRange(pen, 0, 15, "FILL")
	if err != nil {
		return err
	}
	if vm.canvas != nil {
		vm.canvas.Fill(p)
	}
	return nil
}

// Test implements TEST(x,y).
func (vm *VM) Test(x, y any) (int, error) {
	gx, gy, err := vm.coords(x, y, "TEST")
	if err != nil {
		return 0, err
	}
	if vm.canvas == nil {
		return 0, nil
	}
	return vm.canvas.Test(gx, gy), nil
}

// TestR implements TESTR(dx,dy).
func (vm *VM) TestR(x, y any) (int, error) {
	gx, gy, err := vm.coords(x, y, "TESTR")
	if err != nil {
		return 0, err
	}
	if vm.canvas == nil {
		return 0, nil
	}
	return vm.canvas.Test(gx+vm.canvas.XPos(), gy+vm.canvas.YPos()), nil
}

// Clg implements CLG [paper].
func (vm *VM) Clg(paper ...any) error {
	if len(paper) > 0 && paper[0] != nil {
		if err := vm.GraphicsPaper(paper[0]); err != nil {
			return err
		}
	}
	if vm.canvas != nil {
		vm.canvas.ClearGraphicsWindow()
	}
	return nil
}

// XPos returns the graphics cursor x.
func (vm *VM) XPos() int {
	if vm.canvas == nil {
		return 0
	}
	return vm.canvas.XPos()
}

// YPos returns the graphics cursor y.
func (vm *VM) YPos() int {
	if vm.canvas == nil {
		return 0
	}
	return vm.canvas.YPos()
}
