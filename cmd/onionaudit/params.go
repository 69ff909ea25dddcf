package main

import (
	"strconv"

	"github.com/zeebo/clingy"
)

func stringFlag(params clingy.Parameters, name, desc, def string) string {
	return params.Flag(name, desc, def).(string)
}

func toggleFlag(params clingy.Parameters, name, desc string, def bool) bool {
	return params.Flag(name, desc, def, clingy.Transform(strconv.ParseBool), clingy.Boolean).(bool)
}

func intFlag(params clingy.Parameters, name, desc string, def int) int {
	return params.Flag(name, desc, def, clingy.Transform(strconv.Atoi)).(int)
}

func stringArg(params clingy.Parameters, name, desc string) string {
	return params.Arg(name, desc).(string)
}
