// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compile

import (
	"github.com/AleutianAI/wamlink/services/wam/machine"
	"github.com/AleutianAI/wamlink/services/wam/ops"
	"github.com/AleutianAI/wamlink/services/wam/term"
)

// useModule merges every export of src into bundle and, when a module is
// being defined, into that module as well.
func useModule(bundle *machine.IndexBundle, module *machine.Module, src *machine.Module) {
	merge(bundle, module, src.Name, src.ExportedCode(), src.ExportedOps())
}

// useQualifiedModule is useModule restricted to keys. The destinations
// gain exactly the requested exports and nothing else.
func useQualifiedModule(bundle *machine.IndexBundle, module *machine.Module, src *machine.Module, keys []term.PredicateKey) {
	code, opDir := machine.QualifiedExports(src, keys)
	merge(bundle, module, src.Name, code, opDir)
}

func merge(bundle *machine.IndexBundle, module *machine.Module, name string, code machine.CodeDir, opDir ops.Dir) {
	bundle.CodeDir.Merge(code)
	bundle.OpDir.Merge(opDir)
	bundle.MarkUsed(name)
	if module == nil {
		return
	}
	module.CodeDir.Merge(code)
	module.OpDir.Merge(opDir)
}
