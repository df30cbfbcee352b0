package vulkan

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/rhi/engine/renderer/rhi"
)

func TestResultError(t *testing.T) {
	tests := []struct {
		result vk.Result
		want   error
	}{
		{vk.ErrorDeviceLost, rhi.ErrDeviceLost},
		{vk.ErrorOutOfDate, rhi.ErrOutOfDate},
		{vk.ErrorSurfaceLost, rhi.ErrNoSurface},
	}
	for _, tt := range tests {
		if err := resultError("vkQueueSubmit", tt.result); !errors.Is(err, tt.want) {
			t.Errorf("resultError(%s):\nhave %v\nwant %v", VulkanResultString(tt.result, false), err, tt.want)
		}
	}
	err := resultError("vkCreateImage", vk.ErrorOutOfDeviceMemory)
	if !strings.Contains(err.Error(), "VK_ERROR_OUT_OF_DEVICE_MEMORY") {
		t.Fatalf("resultError message:\nhave %q\nwant the result name", err)
	}
}

func TestVulkanResultString(t *testing.T) {
	if have := VulkanResultString(vk.Timeout, false); have != "VK_TIMEOUT" {
		t.Fatalf("short:\nhave %q\nwant %q", have, "VK_TIMEOUT")
	}
	if have := VulkanResultString(vk.Result(-12345), true); have != "VkResult(-12345)" {
		t.Fatalf("unknown:\nhave %q\nwant %q", have, "VkResult(-12345)")
	}
	if !VulkanResultIsSuccess(vk.Suboptimal) || VulkanResultIsSuccess(vk.ErrorUnknown) {
		t.Fatal("VulkanResultIsSuccess: Suboptimal is a success, ErrorUnknown is not")
	}
	if have := VulkanSafeString("main"); have != "main\x00" {
		t.Fatalf("VulkanSafeString:\nhave %q\nwant %q", have, "main\x00")
	}
	if have := cString([]byte{'g', 'p', 'u', 0, 'x'}); have != "gpu" {
		t.Fatalf("cString:\nhave %q\nwant %q", have, "gpu")
	}
}

func TestLockPoolSerializesQueue(t *testing.T) {
	pool := NewVulkanLockPool()
	var inside, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.SafeQueueCall(0, func() error {
				n := inside.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	if have := peak.Load(); have != 1 {
		t.Fatalf("concurrent calls on one queue:\nhave %d\nwant 1", have)
	}

	want := errors.New("boom")
	if err := pool.SafeCall(SwapchainManagement, func() error { return want }); err != want {
		t.Fatalf("SafeCall error:\nhave %v\nwant %v", err, want)
	}
	// Another group does not wait for a held one.
	done := make(chan struct{})
	pool.SafeCall(DescriptorManagement, func() error {
		go func() {
			pool.SafeCall(PipelineManagement, func() error { return nil })
			close(done)
		}()
		<-done
		return nil
	})
}
