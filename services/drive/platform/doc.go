// Package platform provides halcore.Hardware for a board: RP2040 pins and PWM
// under TinyGo, simulated pins everywhere else.
package platform
