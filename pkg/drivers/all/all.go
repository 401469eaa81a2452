// Package all registers every shipped driver with instrument.Default.
package all

import (
	_ "github.com/OpenTraceLab/labctl/pkg/drivers/generators/keysight33500b"
	_ "github.com/OpenTraceLab/labctl/pkg/drivers/mainframes/keysight81635a"
	_ "github.com/OpenTraceLab/labctl/pkg/drivers/mainframes/keysight8163b"
	_ "github.com/OpenTraceLab/labctl/pkg/drivers/mainframes/keysight81960a"
	_ "github.com/OpenTraceLab/labctl/pkg/drivers/oscilloscopes/rigolds1000z"
	_ "github.com/OpenTraceLab/labctl/pkg/drivers/powermeters/hp437b"
	_ "github.com/OpenTraceLab/labctl/pkg/drivers/sourcemeters/keithley2400"
)
