//go:build windows

package platform

import "unsafe"

// Win32Handle returns the HWND of the window for the DX12 swap chain.
func (p *Platform) Win32Handle() uintptr {
	if p.Window == nil {
		return 0
	}
	return uintptr(unsafe.Pointer(p.Window.GetWin32Window()))
}
