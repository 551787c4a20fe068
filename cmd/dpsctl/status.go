package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/opendps/godps/protocol"
)

type statusJSON struct {
	VIn    string `json:"V_in"`
	VSet   string `json:"V_set"`
	VOut   string `json:"V_out"`
	ILim   string `json:"I_lim"`
	IOut   string `json:"I_out"`
	Enable bool   `json:"enable"`
}

func printStatus(st *protocol.Status, asJSON bool) error {
	vIn := volts(st.VIn)
	vSet := volts(st.VOutSetting)
	vOut := volts(st.VOut)
	iLim := amps(st.ILimit)
	iOut := amps(st.IOut)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(statusJSON{
			VIn:    vIn,
			VSet:   vSet,
			VOut:   vOut,
			ILim:   iLim,
			IOut:   iOut,
			Enable: st.PowerEnabled,
		})
	}

	enable := "off"
	if st.PowerEnabled {
		enable = "on"
	}
	fmt.Printf("V_in  : %s V\n", vIn)
	fmt.Printf("V_set : %s V\n", vSet)
	fmt.Printf("V_out : %s V (%s)\n", vOut, enable)
	fmt.Printf("I_lim : %s A\n", iLim)
	fmt.Printf("I_out : %s A\n", iOut)
	return nil
}

func volts(mv uint16) string {
	return fmt.Sprintf("%d.%02d", mv/1000, mv%1000/10)
}

func amps(ma uint16) string {
	return fmt.Sprintf("%d.%03d", ma/1000, ma%1000)
}
