package cpcvm

import (
	"strings"
)

type inFile struct {
	open  bool
	name  string
	lines []string
	line  int
	// items of the current line not yet consumed by INPUT #9
	items []string
}

type outFile struct {
	open bool
	name string
	text strings.Builder
}

func (vm *VM) closeFiles() {
	vm.fileIn = inFile{}
	vm.fileOut.open = false
	vm.fileOut.name = ""
	vm.fileOut.text.Reset()
}

func (vm *VM) fileOp(reason StopReason, op PendingFileOp) {
	vm.requestStop(reason, op)
}

// OpenIn implements OPENIN; the driver supplies the lines with SetFileInput.
func (vm *VM) OpenIn(name, resumeAt string) error {
	if vm.fileIn.open {
		return vm.Raise(FaultFileAlreadyOpen, "OPENIN "+name)
	}
	vm.fileOp(StopFileLoad, PendingFileOp{Kind: FileOpOpenIn, Name: name, Stream: cassetteStream, ResumeAt: resumeAt})
	return nil
}

// SetFileInput completes OPENIN with the file content.
func (vm *VM) SetFileInput(name string, content string) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	vm.fileIn = inFile{open: true, name: name, lines: lines}
}

// CloseIn implements CLOSEIN.
func (vm *VM) CloseIn() {
	vm.fileIn = inFile{}
}

// OpenOut implements OPENOUT; output collects until CLOSEOUT.
func (vm *VM) OpenOut(name string) error {
	if vm.fileOut.open {
		return vm.Raise(FaultFileAlreadyOpen, "OPENOUT "+name)
	}
	vm.fileOut.open = true
	vm.fileOut.name = name
	vm.fileOut.text.Reset()
	vm.windows[cassetteStream].Pos = 0
	return nil
}

// CloseOut implements CLOSEOUT: the collected text is handed to the driver for saving.
func (vm *VM) CloseOut(resumeAt string) error {
	if !vm.fileOut.open {
		return nil
	}
	content := strings.ReplaceAll(vm.fileOut.text.String(), "\r\n", "\n")
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	op := PendingFileOp{Kind: FileOpCloseOut, Name: vm.fileOut.name, Stream: cassetteStream, Type: "A", Lines: lines, ResumeAt: resumeAt}
	vm.fileOut.open = false
	vm.fileOut.name = ""
	vm.fileOut.text.Reset()
	vm.fileOp(StopFileSave, op)
	return nil
}

// EOF implements EOF: -1 when the input file is exhausted.
func (vm *VM) EOF() (int, error) {
	if !vm.fileIn.open {
		return 0, vm.Raise(FaultFileNotOpen, "EOF")
	}
	if len(vm.fileIn.items) == 0 && vm.fileIn.line >= len(vm.fileIn.lines) {
		return -1, nil
	}
	return 0, nil
}

func (vm *VM) inputFromFile(line bool, types []VarType) error {
	f := &vm.fileIn
	if !f.open {
		return vm.Raise(FaultFileNotOpen, "INPUT #9")
	}
	vm.inputValues = vm.inputValues[:0]
	if line {
		if len(f.items) == 0 && f.line >= len(f.lines) {
			return vm.Raise(FaultEOFMet, "LINE INPUT #9")
		}
		text := strings.Join(f.items, ",")
		if len(f.items) == 0 {
			text = f.lines[f.line]
			f.line++
		}
		f.items = nil
		vm.inputValues = append(vm.inputValues, Str(text))
		return nil
	}
	for _, t := range types {
		if len(f.items) == 0 {
			if f.line >= len(f.lines) {
				return vm.Raise(FaultEOFMet, "INPUT #9")
			}
			f.items = splitInputItems(f.lines[f.line])
			f.line++
		}
		item := strings.TrimSpace(f.items[0])
		f.items = f.items[1:]
		vals, ok := convertInputItems([]string{item}, []VarType{t})
		if !ok {
			return vm.Raise(FaultTypeMismatch, "INPUT #9 "+item)
		}
		vm.inputValues = append(vm.inputValues, vals[0])
	}
	return nil
}

// Load implements LOAD name[,address].
func (vm *VM) Load(name string, address ...any) error {
	op := PendingFileOp{Kind: FileOpLoad, Name: name, Address: -1}
	if len(address) > 0 && address[0] != nil {
		a, err := vm.twos(address[0], "LOAD")
		if err != nil {
			return err
		}
		op.Address = a
	}
	vm.fileOp(StopFileLoad, op)
	return nil
}

// Save implements SAVE name[,type[,address,length[,entry]]].
func (vm *VM) Save(name, fileType string, args ...any) error {
	op := PendingFileOp{Kind: FileOpSave, Name: name, Type: strings.ToUpper(fileType)}
	if op.Type == "B" {
		if len(args) < 2 {
			return vm.Raise(FaultOperandMissing, "SAVE")
		}
		vals := []*int{&op.Address, &op.Length, &op.Entry}
		for i, a := range args {
			if i >= len(vals) {
				return vm.Raise(FaultSyntax, "SAVE")
			}
			n, err := vm.twos(a, "SAVE")
			if err != nil {
				return err
			}
			*vals[i] = n
		}
	}
	vm.fileOp(StopFileSave, op)
	return nil
}

// RunFile implements RUN "name".
func (vm *VM) RunFile(name string) {
	vm.fileOp(StopFileLoad, PendingFileOp{Kind: FileOpRun, Name: name})
}

// Chain implements CHAIN name[,line].
func (vm *VM) Chain(name string, line ...any) error {
	return vm.chain(FileOpChain, name, line)
}

// ChainMerge implements CHAIN MERGE name[,line].
func (vm *VM) ChainMerge(name string, line ...any) error {
	return vm.chain(FileOpChainMerge, name, line)
}

func (vm *VM) chain(kind FileOpKind, name string, line []any) error {
	op := PendingFileOp{Kind: kind, Name: name}
	if len(line) > 0 && line[0] != nil {
		n, err := vm.inRange(line[0], 1, maxUint16, "CHAIN")
		if err != nil {
			return err
		}
		op.Line = n
	}
	vm.fileOp(StopFileLoad, op)
	return nil
}

// Merge implements MERGE name.
func (vm *VM) Merge(name string) {
	vm.fileOp(StopFileLoad, PendingFileOp{Kind: FileOpMerge, Name: name})
}

// Cat implements CAT.
func (vm *VM) Cat(resumeAt string) {
	vm.fileOp(StopFileCat, PendingFileOp{Kind: FileOpCat, ResumeAt: resumeAt})
}

// Dir implements |DIR[,mask].
func (vm *VM) Dir(mask, resumeAt string) {
	vm.fileOp(StopFileDir, PendingFileOp{Kind: FileOpDir, Name: mask, ResumeAt: resumeAt})
}

// Era implements |ERA,mask.
func (vm *VM) Era(mask, resumeAt string) {
	vm.fileOp(StopFileEra, PendingFileOp{Kind: FileOpEra, Name: mask, ResumeAt: resumeAt})
}

// Ren implements |REN,new,old.
func (vm *VM) Ren(newName, oldName, resumeAt string) {
	vm.fileOp(StopFileRen, PendingFileOp{Kind: FileOpRen, Name: oldName, NewName: newName, ResumeAt: resumeAt})
}
