package script

// FailSafeName identifies the built-in fail-safe effect.
const FailSafeName = "<failsafe>"

// FailSafeSource is the built-in effect used when configured profiles
// cannot be loaded: all LEDs solid red so the failure is visible.
const FailSafeSource = `
local color_map = {}

function on_render()
    for i = 1, canvas_size do
        color_map[i] = rgb_to_color(255, 0, 0)
    end
    submit_color_map(color_map)
end
`
