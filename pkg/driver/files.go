package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/antibyte/retrocpc/pkg/cpcvm"
	"github.com/antibyte/retrocpc/pkg/storage"
)

// fileOp performs a pending file operation. Program files (LOAD, RUN, CHAIN,
// MERGE of BASIC source, SAVE of the program) need the compiler and go back
// to the caller; the loaded file is attached to the outcome by the caller
// through LoadFile.
func (d *Driver) fileOp(ctx context.Context, op cpcvm.PendingFileOp) (bool, error) {
	if d.files == nil {
		return false, fmt.Errorf("%s %s: %w", op.Kind, op.Name, ErrNoLoader)
	}
	vm := d.vm

	switch op.Kind {
	case cpcvm.FileOpOpenIn:
		f, err := d.files.Load(ctx, op.Name)
		if err != nil {
			return d.fileFault(op, err)
		}
		vm.ClearStop()
		vm.SetFileInput(f.Name, string(f.Content))
		d.resume(op)
		return true, nil

	case cpcvm.FileOpCloseOut:
		content := strings.Join(op.Lines, "\n")
		if len(op.Lines) > 0 {
			content += "\n"
		}
		if err := d.files.Save(ctx, storage.File{Name: op.Name, Type: "A", Content: []byte(content)}); err != nil {
			return d.fileFault(op, err)
		}
		vm.ClearStop()
		d.resume(op)
		return true, nil

	case cpcvm.FileOpLoad:
		f, err := d.files.Load(ctx, op.Name)
		if err != nil {
			return d.fileFault(op, err)
		}
		if f.Type != "B" {
			return false, nil
		}
		addr := f.Address
		if op.Address >= 0 {
			addr = op.Address
		}
		vm.ClearStop()
		if err := vm.LoadBinary(addr, f.Content); err != nil {
			return true, nil
		}
		d.log.Debug("loaded %s to &%04X (%d bytes)", f.Name, addr, len(f.Content))
		return true, nil

	case cpcvm.FileOpSave:
		if op.Type != "B" {
			return false, nil
		}
		f := storage.File{
			Name:    op.Name,
			Type:    "B",
			Content: vm.ReadBinary(op.Address, op.Length),
			Address: op.Address,
			Entry:   op.Entry,
		}
		if err := d.files.Save(ctx, f); err != nil {
			return d.fileFault(op, err)
		}
		vm.ClearStop()
		return true, nil

	case cpcvm.FileOpCat, cpcvm.FileOpDir:
		list, err := d.files.Catalog(ctx, op.Name)
		if err != nil {
			return false, fmt.Errorf("catalog: %w", err)
		}
		vm.ClearStop()
		_ = vm.Print(0, CatalogText(list))
		d.resume(op)
		return true, nil

	case cpcvm.FileOpEra:
		vm.ClearStop()
		if _, err := d.files.Erase(ctx, op.Name); err != nil {
			if !errors.Is(err, storage.ErrFileNotFound) {
				return false, fmt.Errorf("erase: %w", err)
			}
			_ = vm.Print(0, strings.ToUpper(op.Name)+" not found\r\n")
		}
		d.resume(op)
		return true, nil

	case cpcvm.FileOpRen:
		vm.ClearStop()
		err := d.files.Rename(ctx, op.NewName, op.Name)
		switch {
		case errors.Is(err, storage.ErrFileExists):
			_ = vm.Print(0, strings.ToUpper(op.NewName)+" already exists\r\n")
		case errors.Is(err, storage.ErrFileNotFound):
			_ = vm.Print(0, strings.ToUpper(op.Name)+" not found\r\n")
		case err != nil:
			return false, fmt.Errorf("rename: %w", err)
		}
		d.resume(op)
		return true, nil
	}
	// run, chain, chainMerge, merge
	return false, nil
}

func (d *Driver) resume(op cpcvm.PendingFileOp) {
	if op.ResumeAt != "" {
		d.vm.Goto(op.ResumeAt)
	}
}

// fileFault reports a missing file the way the disc ROM does and raises
// "Broken in" at the current line. Other store errors end the run.
func (d *Driver) fileFault(op cpcvm.PendingFileOp, err error) (bool, error) {
	if !errors.Is(err, storage.ErrFileNotFound) && !errors.Is(err, storage.ErrInvalidName) {
		return false, fmt.Errorf("%s %s: %w", op.Kind, op.Name, err)
	}
	vm := d.vm
	vm.ClearStop()
	_ = vm.Print(0, strings.ToUpper(op.Name)+" not found\r\n")
	_ = vm.Raise(cpcvm.FaultBroken, string(op.Kind)+" "+op.Name)
	d.log.Debug("%s %s: %v", op.Kind, op.Name, err)
	return true, nil
}

// LoadFile reads the file of a load, run, chain or merge outcome.
func (d *Driver) LoadFile(ctx context.Context, out Outcome) (storage.File, error) {
	op, ok := out.Payload.(cpcvm.PendingFileOp)
	if !ok {
		return storage.File{}, fmt.Errorf("outcome %s has no file", out.Reason)
	}
	if d.files == nil {
		return storage.File{}, ErrNoLoader
	}
	return d.files.Load(ctx, op.Name)
}

// CatalogText formats a directory listing in two columns.
func CatalogText(list []storage.FileInfo) string {
	var sb strings.Builder
	sb.WriteString("\r\nDrive A: user  0\r\n\r\n")
	total := 0
	for i, fi := range list {
		kb := (fi.Size + 1023) / 1024
		total += kb
		fmt.Fprintf(&sb, "%-12s %3dK", fi.Name, kb)
		if i%2 == 1 || i == len(list)-1 {
			sb.WriteString("\r\n")
		} else {
			sb.WriteString("    ")
		}
	}
	fmt.Fprintf(&sb, "\r\n%3dK free\r\n\r\n", max(0, 178-total))
	return sb.String()
}
