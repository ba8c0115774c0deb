package main

import (
	"github.com/wippyai/structsight/abi"
)

type profileInfo struct {
	Key          string       `json:"key"`
	Architecture string       `json:"architecture"`
	Dialect      string       `json:"dialect"`
	PointerSize  uint64       `json:"pointerSize"`
	Long         uint64       `json:"long"`
	WChar        uint64       `json:"wchar"`
	LongDouble   abi.TypeInfo `json:"longDouble"`
	Int128       bool         `json:"int128"`
	Bitfields    string       `json:"bitfields"`
	VirtualBases bool         `json:"virtualBases"`
}

func profileList() []profileInfo {
	var out []profileInfo
	for _, p := range abi.Profiles() {
		long, _ := p.Fundamental(abi.Long)
		wchar, _ := p.Fundamental(abi.WChar)
		ld, _ := p.Fundamental(abi.LongDouble)
		_, i128 := p.Fundamental(abi.Int128)
		out = append(out, profileInfo{
			Key:          p.Key().String(),
			Architecture: p.Arch.String(),
			Dialect:      p.Dialect.String(),
			PointerSize:  p.PointerSize,
			Long:         long.Size,
			WChar:        wchar.Size,
			LongDouble:   ld,
			Int128:       i128,
			Bitfields:    p.Bitfields.String(),
			VirtualBases: p.VirtualBases,
		})
	}
	return out
}
